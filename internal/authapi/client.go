// Package authapi talks to the central auth service, its user-id mapping
// endpoint and the browser-facing auth client.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/restclient"
)

// ErrNoUser is returned when the auth service reports no signed-in user.
var ErrNoUser = errors.New("no authenticated user")

// Interface defines the auth service operations used by the dashboard.
type Interface interface {
	Me(ctx context.Context) (*models.User, error)
	GuestLogin(ctx context.Context) (*models.User, error)
	UpdateRole(ctx context.Context, role string) error
	SignOut(ctx context.Context) error
	TradingUserID(ctx context.Context) (int64, error)
	Health(ctx context.Context) error
	ClientHealth(ctx context.Context) error
	SignInURL(redirectTo string) string
}

// Client implements Interface.
type Client struct {
	api           *restclient.Client
	authClient    *restclient.Client
	authClientURL string
	source        string
	healthTimeout time.Duration
	logger        *zap.Logger
}

// ensure Client implements the interface
var _ Interface = (*Client)(nil)

// NewClient creates an auth client. api serves /api/auth and /api/mapping;
// authClient is the sign-in application probed by ClientHealth.
func NewClient(api, authClient *restclient.Client, cfg config.AuthClient, healthTimeout time.Duration, logger *zap.Logger) *Client {
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}
	return &Client{
		api:           api,
		authClient:    authClient,
		authClientURL: cfg.URL,
		source:        cfg.Source,
		healthTimeout: healthTimeout,
		logger:        logger,
	}
}

// Me returns the signed-in user. A 4xx answer yields ErrNoUser.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var result models.AuthResponse
	req := c.api.R(ctx).SetResult(&result).SetError(&result)

	_, err := c.api.Do(ctx, http.MethodGet, "/api/auth/me", req)
	if err != nil {
		if code := restclient.StatusCode(err); code >= 400 && code < 500 {
			return nil, ErrNoUser
		}
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if !result.Success || result.User == nil {
		return nil, ErrNoUser
	}
	return result.User, nil
}

// GuestLogin starts an anonymous guest session.
func (c *Client) GuestLogin(ctx context.Context) (*models.User, error) {
	var result models.AuthResponse
	req := c.api.R(ctx).SetResult(&result).SetError(&result)

	if _, err := c.api.Do(ctx, http.MethodPost, "/api/auth/guest-login", req); err != nil {
		return nil, fmt.Errorf("guest login failed: %w", err)
	}
	if !result.Success || result.User == nil {
		return nil, fmt.Errorf("guest login failed: %s", firstNonEmpty(result.Error, result.Message, "no user returned"))
	}
	c.logger.Info("Guest login successful", zap.String("user", result.User.ID))
	return result.User, nil
}

// UpdateRole changes the role of the signed-in user.
func (c *Client) UpdateRole(ctx context.Context, role string) error {
	var result models.AuthResponse
	req := c.api.R(ctx).
		SetBody(map[string]string{"role": role}).
		SetResult(&result).
		SetError(&result)

	if _, err := c.api.Do(ctx, http.MethodPut, "/api/auth/update-role", req); err != nil {
		if result.Message != "" {
			return fmt.Errorf("failed to update role: %s: %w", result.Message, err)
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// SignOut ends the session on the auth service.
func (c *Client) SignOut(ctx context.Context) error {
	if _, err := c.api.Do(ctx, http.MethodPost, "/api/auth/signout", c.api.R(ctx)); err != nil {
		return fmt.Errorf("sign out failed: %w", err)
	}
	return nil
}

// TradingUserID resolves the signed-in user to its trading service id.
func (c *Client) TradingUserID(ctx context.Context) (int64, error) {
	var mapping models.UserMapping
	req := c.api.R(ctx).SetResult(&mapping)

	if _, err := c.api.Do(ctx, http.MethodGet, "/api/mapping/trading-user-id", req); err != nil {
		return 0, fmt.Errorf("user mapping failed: %w", err)
	}
	return mapping.TradingUserID, nil
}

// Health probes the auth API once. 2xx and 429 count as healthy: a rate
// limited service is up.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	_, err := c.api.Once(ctx, http.MethodGet, "/health", c.api.R(ctx))
	if err != nil && restclient.StatusCode(err) != http.StatusTooManyRequests {
		return err
	}
	return nil
}

// ClientHealth probes the auth client application once.
func (c *Client) ClientHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	_, err := c.authClient.Once(ctx, http.MethodGet, "/", c.authClient.R(ctx))
	return err
}

// SignInURL is where a user is sent to sign in.
func (c *Client) SignInURL(redirectTo string) string {
	return c.redirectURL("/signin", redirectTo)
}

// SignUpURL is where a user is sent to register.
func (c *Client) SignUpURL(redirectTo string) string {
	return c.redirectURL("/signup", redirectTo)
}

// ProfileURL is the account management page.
func (c *Client) ProfileURL(redirectTo string) string {
	return c.redirectURL("/profile", redirectTo)
}

func (c *Client) redirectURL(path, redirectTo string) string {
	params := url.Values{}
	if redirectTo != "" {
		params.Set("redirectTo", redirectTo)
	}
	params.Set("source", c.source)
	return c.authClientURL + path + "?" + params.Encode()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
