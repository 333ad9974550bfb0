package restclient

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// AuthCookie is the session cookie issued by the auth service.
const AuthCookie = "auth_token"

// CookieSession holds the auth_token cookie shared by all clients.
type CookieSession struct {
	mu    sync.RWMutex
	token string
}

// NewCookieSession returns a session seeded with token, which may be empty.
func NewCookieSession(token string) *CookieSession {
	return &CookieSession{token: token}
}

// Token returns the current cookie value.
func (s *CookieSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the cookie value.
func (s *CookieSession) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the cookie.
func (s *CookieSession) Clear() {
	s.Set("")
}

func (s *CookieSession) attach(client *resty.Client) {
	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if tok := s.Token(); tok != "" {
			r.SetCookie(&http.Cookie{Name: AuthCookie, Value: tok})
		}
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		for _, c := range resp.Cookies() {
			if c.Name != AuthCookie {
				continue
			}
			if c.Value == "" || c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
				s.Clear()
			} else {
				s.Set(c.Value)
			}
		}
		return nil
	})
}
