package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/config"
)

// setupTestServer creates a test server and a Client configured to use it.
func setupTestServer(handler http.Handler, session *CookieSession) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	cfg := config.API{
		URL:            server.URL,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	}
	return New("test", cfg, session, zap.NewNop()), server
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 16*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(5))
	assert.Equal(t, 30*time.Second, p.Backoff(9))
}

func TestDo(t *testing.T) {
	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		rc, server := setupTestServer(handler, nil)
		defer server.Close()

		resp, err := rc.Do(context.Background(), http.MethodGet, "/x", rc.R(context.Background()))

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.String())
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		rc, server := setupTestServer(handler, nil)
		defer server.Close()

		_, err := rc.Do(context.Background(), http.MethodGet, "/x", rc.R(context.Background()))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "request failed after 4 attempts")
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	})

	t.Run("ClientErrorsNotRetried", func(t *testing.T) {
		for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests} {
			var calls int32
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(status)
			})
			rc, server := setupTestServer(handler, nil)

			_, err := rc.Do(context.Background(), http.MethodGet, "/x", rc.R(context.Background()))

			assert.Equal(t, status, StatusCode(err))
			assert.False(t, IsNetworkError(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			server.Close()
		}
	})

	t.Run("MutationsAttemptedOnce", func(t *testing.T) {
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		rc, server := setupTestServer(handler, nil)
		defer server.Close()

		_, err := rc.Do(context.Background(), http.MethodPut, "/buy", rc.R(context.Background()))

		assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("NetworkError", func(t *testing.T) {
		rc, server := setupTestServer(http.NotFoundHandler(), nil)
		server.Close()

		_, err := rc.Once(context.Background(), http.MethodGet, "/x", rc.R(context.Background()))

		assert.True(t, IsNetworkError(err))
		assert.Equal(t, 0, StatusCode(err))
	})

	t.Run("RequestID", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		})
		rc, server := setupTestServer(handler, nil)
		defer server.Close()

		_, err := rc.Do(context.Background(), http.MethodGet, "/x", rc.R(context.Background()))
		assert.NoError(t, err)
	})
}

func TestCookieSession(t *testing.T) {
	t.Run("SendsAndCapturesToken", func(t *testing.T) {
		var seen string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(AuthCookie); err == nil {
				seen = c.Value
			}
			if r.URL.Path == "/login" {
				http.SetCookie(w, &http.Cookie{Name: AuthCookie, Value: "fresh"})
			}
		})
		session := NewCookieSession("initial")
		rc, server := setupTestServer(handler, session)
		defer server.Close()

		_, err := rc.Do(context.Background(), http.MethodPost, "/login", rc.R(context.Background()))
		require.NoError(t, err)
		assert.Equal(t, "initial", seen)
		assert.Equal(t, "fresh", session.Token())

		_, err = rc.Do(context.Background(), http.MethodGet, "/me", rc.R(context.Background()))
		require.NoError(t, err)
		assert.Equal(t, "fresh", seen)
	})

	t.Run("ExpiredCookieClears", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: AuthCookie, Value: "", MaxAge: -1})
		})
		session := NewCookieSession("stale")
		rc, server := setupTestServer(handler, session)
		defer server.Close()

		_, err := rc.Do(context.Background(), http.MethodPost, "/signout", rc.R(context.Background()))
		require.NoError(t, err)
		assert.Empty(t, session.Token())
	})
}
