package auth

import (
	"context"
	"strings"
)

// Role is the platform role carried in a user's token.
type Role string

const (
	RoleGuest   Role = "guest"
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a claim value to a Role; unknown values become guest.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient
	case RoleDoctor:
		return RoleDoctor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleGuest
	}
}

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// HasRole reports whether user holds any of roles.
func HasRole(user *User, roles ...Role) bool {
	if user == nil || user.ID == "" {
		return false
	}
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithUser stores user on ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	return user, ok && user != nil && user.ID != ""
}
