package authapi

import "tradezone-dashboard/internal/models"

// CanTrade reports whether role may place orders.
func CanTrade(role string) bool {
	switch role {
	case models.RoleTrader, models.RoleAITrader, models.RoleAdmin:
		return true
	}
	return false
}

// RoleDescription returns a human readable description of role.
func RoleDescription(role string) string {
	switch role {
	case models.RoleGuest:
		return "Guest user with limited access"
	case models.RoleTrader:
		return "Trader with full trading access"
	case models.RoleAITrader:
		return "AI Trader with advanced features"
	case models.RoleAdmin:
		return "Administrator with full access"
	default:
		return "Unknown role"
	}
}
