package models

import "strings"

// Roles known to the auth service.
const (
	RoleGuest    = "guest"
	RoleTrader   = "trader"
	RoleAITrader = "aitrader"
	RoleAdmin    = "admin"
)

// User is the identity returned by the auth API.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// IsGuest reports whether the user is an anonymous guest session.
func (u User) IsGuest() bool {
	return u.Role == RoleGuest || u.Email == "" || strings.Contains(u.Email, "guest")
}

// Suspended reports whether the account was deactivated.
func (u User) Suspended() bool {
	return u.IsActive != nil && !*u.IsActive
}

// AuthResponse is the envelope used by the auth API.
type AuthResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// UserMapping links an auth identity to its trading user id.
type UserMapping struct {
	AuthUUID      string `json:"supabase_uuid"`
	TradingUserID int64  `json:"trading_user_id"`
}
