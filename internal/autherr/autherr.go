// Package autherr categorizes failures of the auth and mapping services and
// fans them out to subscribers with duplicate suppression.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/metrics"
	"tradezone-dashboard/internal/restclient"
)

// Category is the user-facing class of an auth failure.
type Category string

const (
	AuthAPIDown    Category = "auth_api_down"
	AuthClientDown Category = "auth_client_down"
	MappingFailed  Category = "mapping_failed"
	UserNotFound   Category = "user_not_found"
	NetworkError   Category = "network_error"
)

// Error is a categorized auth failure.
type Error struct {
	Category  Category
	Message   string
	Details   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// As extracts a categorized error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ClassifyAuthAPI maps a failed auth API call to a category.
func ClassifyAuthAPI(err error) *Error {
	status := restclient.StatusCode(err)
	switch {
	case restclient.IsNetworkError(err):
		return &Error{
			Category:  AuthAPIDown,
			Message:   "Authentication Service is currently unavailable",
			Details:   "The authentication service is not responding. Please try again later.",
			Retryable: true,
			Cause:     err,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{
			Category: UserNotFound,
			Message:  "Authentication required",
			Details:  "Please sign in to access this feature.",
			Cause:    err,
		}
	case status >= 500:
		return &Error{
			Category:  AuthAPIDown,
			Message:   "Authentication Service Error",
			Details:   "The authentication service encountered an error. Please try again later.",
			Retryable: true,
			Cause:     err,
		}
	case status >= 400:
		return &Error{
			Category: NetworkError,
			Message:  "Authentication Service Error",
			Details:  err.Error(),
			Cause:    err,
		}
	default:
		return &Error{
			Category:  NetworkError,
			Message:   "Authentication Service Error",
			Details:   detailsOr(err, "An unexpected error occurred with the authentication service."),
			Retryable: true,
			Cause:     err,
		}
	}
}

// ClassifyMapping maps a failed user-id mapping call to a category.
func ClassifyMapping(err error) *Error {
	status := restclient.StatusCode(err)
	switch {
	case restclient.IsNetworkError(err):
		return &Error{
			Category:  AuthAPIDown,
			Message:   "User Mapping Service is currently unavailable",
			Details:   "Unable to retrieve user information. Please try again later.",
			Retryable: true,
			Cause:     err,
		}
	case status == http.StatusNotFound:
		return &Error{
			Category: MappingFailed,
			Message:  "User Profile Not Found",
			Details:  "Your user profile could not be located. Please contact support.",
			Cause:    err,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{
			Category: UserNotFound,
			Message:  "Authentication required",
			Details:  "Please sign in to access this feature.",
			Cause:    err,
		}
	default:
		return &Error{
			Category:  MappingFailed,
			Message:   "User Mapping Error",
			Details:   detailsOr(err, "An error occurred while retrieving user information."),
			Retryable: status == 0 || status >= 500,
			Cause:     err,
		}
	}
}

func detailsOr(err error, fallback string) string {
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

// Handler notifies subscribers of categorized errors. The same category and
// message reported again within the dedup window is not re-delivered.
type Handler struct {
	mu          sync.Mutex
	subscribers map[int]func(*Error)
	nextID      int
	last        *Error
	lastAt      time.Time
	window      time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewHandler creates a Handler with the given dedup window.
func NewHandler(window time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		subscribers: make(map[int]func(*Error)),
		window:      window,
		now:         time.Now,
		logger:      logger,
	}
}

// OnError registers fn and returns a function that removes it.
func (h *Handler) OnError(fn func(*Error)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}
}

// HandleAuthAPIError categorizes and reports an auth API failure.
func (h *Handler) HandleAuthAPIError(err error, op string) *Error {
	ae := ClassifyAuthAPI(err)
	h.logger.Error("Auth service error", zap.String("op", op), zap.String("category", string(ae.Category)), zap.Error(err))
	h.notify(ae)
	return ae
}

// HandleMappingError categorizes and reports a user mapping failure.
func (h *Handler) HandleMappingError(err error, op string) *Error {
	ae := ClassifyMapping(err)
	h.logger.Error("User mapping error", zap.String("op", op), zap.String("category", string(ae.Category)), zap.Error(err))
	h.notify(ae)
	return ae
}

// HandleAuthClientDown reports that the sign-in application is unreachable.
func (h *Handler) HandleAuthClientDown(err error, op string) *Error {
	ae := &Error{
		Category:  AuthClientDown,
		Message:   "Sign-in Service is currently unavailable",
		Details:   "The sign-in page cannot be reached. Please try again later.",
		Retryable: true,
		Cause:     err,
	}
	h.logger.Error("Auth client unreachable", zap.String("op", op), zap.Error(err))
	h.notify(ae)
	return ae
}

// Last returns the most recently delivered error, or nil.
func (h *Handler) Last() *Error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Reset forgets the last error, typically after a successful health check.
func (h *Handler) Reset() {
	h.mu.Lock()
	if h.last != nil {
		h.logger.Info("Auth service recovered, clearing last error")
	}
	h.last = nil
	h.lastAt = time.Time{}
	h.mu.Unlock()
}

func (h *Handler) notify(ae *Error) {
	metrics.AuthErrorsTotal.WithLabelValues(string(ae.Category)).Inc()

	h.mu.Lock()
	now := h.now()
	if h.last != nil &&
		h.last.Category == ae.Category &&
		h.last.Message == ae.Message &&
		now.Sub(h.lastAt) < h.window {
		h.mu.Unlock()
		h.logger.Debug("Duplicate auth error suppressed", zap.String("category", string(ae.Category)))
		return
	}
	h.last = ae
	h.lastAt = now

	subs := make([]func(*Error), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(ae)
	}
}
