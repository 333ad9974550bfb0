package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/authapi"
	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/database"
	"tradezone-dashboard/internal/identity"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/restclient"
)

var (
	// ErrSignInRequired means the action needs a real account; send the
	// user to SignInURL.
	ErrSignInRequired = errors.New("sign in required")
	// ErrNotAuthenticated means no signed-in, non-guest user is present.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoSession means neither a user nor a guest session exists.
	ErrNoSession = errors.New("no session")
)

// Preferences persists local UI flags.
type Preferences interface {
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
	Delete(key string) error
}

// Session tracks the signed-in user.
type Session struct {
	auth     authapi.Interface
	errs     *autherr.Handler
	resolver *identity.Resolver
	cookies  *restclient.CookieSession
	prefs    Preferences
	logger   *zap.Logger

	mu               sync.RWMutex
	user             *models.User
	suspended        bool
	wasAuthenticated bool
	changed          chan struct{}
}

// NewSession creates a Session. cookies may be nil when the transport keeps
// its own cookie state.
func NewSession(auth authapi.Interface, errs *autherr.Handler, resolver *identity.Resolver, cookies *restclient.CookieSession, prefs Preferences, logger *zap.Logger) *Session {
	return &Session{
		auth:     auth,
		errs:     errs,
		resolver: resolver,
		cookies:  cookies,
		prefs:    prefs,
		logger:   logger.Named("session"),
		changed:  make(chan struct{}, 1),
	}
}

// Check asks the auth service who is signed in. Without a user, and unless
// the user explicitly signed out before, a guest session is started.
func (s *Session) Check(ctx context.Context) error {
	user, err := s.auth.Me(ctx)
	if err == nil {
		s.setUser(user)
		if user.Suspended() {
			s.logger.Warn("Account is suspended", zap.String("user", user.ID))
		}
		if err := s.prefs.Delete(database.KeySkipGuestLogin); err != nil {
			s.logger.Error("Failed to clear skip guest login flag", zap.Error(err))
		}
		return nil
	}

	var checkErr error
	if !errors.Is(err, authapi.ErrNoUser) {
		checkErr = s.errs.HandleAuthAPIError(err, "check-session")
	}
	s.setUser(nil)

	skip, perr := s.prefs.GetBool(database.KeySkipGuestLogin)
	if perr != nil {
		s.logger.Error("Failed to read skip guest login flag", zap.Error(perr))
	}
	if skip {
		s.logger.Info("No user and guest login skipped after sign out")
		return checkErr
	}

	if _, gerr := s.guestLogin(ctx); gerr != nil && checkErr == nil {
		checkErr = gerr
	}
	return checkErr
}

func (s *Session) guestLogin(ctx context.Context) (*models.User, error) {
	user, err := s.auth.GuestLogin(ctx)
	if err != nil {
		return nil, s.errs.HandleAuthAPIError(err, "guest-login")
	}
	s.setUser(user)
	return user, nil
}

// LoginAsGuest starts a guest session on request and re-enables automatic
// guest login.
func (s *Session) LoginAsGuest(ctx context.Context) error {
	if _, err := s.guestLogin(ctx); err != nil {
		return err
	}
	s.resolver.Clear()
	if err := s.prefs.Delete(database.KeySkipGuestLogin); err != nil {
		return fmt.Errorf("guest login succeeded but flag was not cleared: %w", err)
	}
	return nil
}

// SignOut ends the session. Local state is cleared even if the auth service
// cannot be reached, and automatic guest login stays off until the next
// explicit login.
func (s *Session) SignOut(ctx context.Context) error {
	apiErr := s.auth.SignOut(ctx)
	if apiErr != nil {
		s.logger.Error("Sign out request failed", zap.Error(apiErr))
	}

	if err := s.prefs.SetBool(database.KeySkipGuestLogin, true); err != nil {
		s.logger.Error("Failed to persist skip guest login flag", zap.Error(err))
	}
	s.setUser(nil)
	if s.cookies != nil {
		s.cookies.Clear()
	}
	s.resolver.Clear()
	return apiErr
}

// UpgradeToTrader asks for the trader role. Guests have no account to
// upgrade: they are signed out and get ErrSignInRequired.
func (s *Session) UpgradeToTrader(ctx context.Context) error {
	user := s.User()
	if user == nil || user.IsGuest() {
		_ = s.SignOut(ctx)
		return ErrSignInRequired
	}
	if err := s.auth.UpdateRole(ctx, models.RoleTrader); err != nil {
		return err
	}
	return s.Check(ctx)
}

// TradingUserID resolves the trading id of a signed-in, non-guest user.
func (s *Session) TradingUserID(ctx context.Context) (int64, error) {
	if !s.IsAuthenticated() {
		return 0, ErrNotAuthenticated
	}
	return s.resolver.Resolve(ctx)
}

// SignInURL is where to send a user who must sign in.
func (s *Session) SignInURL(redirectTo string) string {
	return s.auth.SignInURL(redirectTo)
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports a signed-in user that is not a guest.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && !s.user.IsGuest()
}

// Suspended reports whether the current account was deactivated.
func (s *Session) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

// CanTrade reports whether the current user may place orders.
func (s *Session) CanTrade() bool {
	u := s.User()
	return u != nil && !u.Suspended() && authapi.CanTrade(u.Role)
}

// WasAuthenticated reports whether a non-guest user has been seen since
// start.
func (s *Session) WasAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wasAuthenticated
}

// Changed signals user changes. Signals coalesce.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

func (s *Session) setUser(user *models.User) {
	s.mu.Lock()
	prevID := ""
	if s.user != nil {
		prevID = s.user.ID
	}
	s.user = user
	s.suspended = user != nil && user.Suspended()
	if user != nil && !user.IsGuest() {
		s.wasAuthenticated = true
	}
	s.mu.Unlock()

	newID := ""
	if user != nil {
		newID = user.ID
	}
	if prevID != newID {
		s.resolver.Clear()
		s.logger.Info("Session user changed", zap.String("user", newID))
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}
