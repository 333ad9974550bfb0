// Package restclient wraps resty with the rate limiting, retry and session
// handling shared by the trading and auth API clients.
package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/metrics"
)

// RetryPolicy controls retries of idempotent requests.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Backoff returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Client is a REST client for one upstream service.
type Client struct {
	name    string
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	retry   RetryPolicy
}

// New creates a client for the service at cfg.URL. The session, when not nil,
// supplies and captures the auth_token cookie.
func New(name string, cfg config.API, session *CookieSession, logger *zap.Logger) *Client {
	// The session owns the auth cookie, so resty's own jar is disabled.
	client := resty.New().SetBaseURL(cfg.URL).SetCookieJar(nil)
	if session != nil {
		session.attach(client)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		name:    name,
		client:  client,
		logger:  logger.Named(name),
		limiter: rate.NewLimiter(limit, burst),
		retry: RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		},
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

// R returns a request bound to ctx and tagged with a fresh request id.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
}

// Do executes req with rate limiting. GET and HEAD requests are retried on
// network errors and 5xx responses; everything else is attempted once.
func (c *Client) Do(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	if method != http.MethodGet && method != http.MethodHead {
		return c.Once(ctx, method, path, req)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		resp, err := c.Once(ctx, method, path, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return resp, err
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		wait := c.retry.Backoff(attempt)
		c.logger.Warn("Request failed, retrying...",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_after", wait),
			zap.Error(err),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// Once executes req a single time. A non-2xx response is returned together
// with a *StatusError.
func (c *Client) Once(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+path))
	start := time.Now()
	resp, err := req.Execute(method, path)
	metrics.UpstreamRequestDuration.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(c.name, method, "error").Inc()
		return resp, &NetworkError{Method: method, Path: path, Err: err}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(c.name, method, strconv.Itoa(resp.StatusCode())).Inc()
	if resp.IsError() || resp.StatusCode() >= 300 {
		return resp, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       resp.String(),
		}
	}
	return resp, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return errors.As(err, new(*NetworkError))
}
