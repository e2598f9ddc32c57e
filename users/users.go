// Package users holds the client-side view of an authenticated user: the
// profile the console displays, derived from token claims plus an optional
// directory lookup. It is replaced wholesale on login and cleared on logout.
package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/go-client/internal/utils"
	"github.com/fleetdesk/go-client/token"
)

// RoleType represents a user's console role
type RoleType string

const (
	RoleAdmin RoleType = "admin" // Can manage users, devices, and assets
	RoleUser  RoleType = "user"  // Regular console access
)

type User struct {
	ID        string     `json:"id"`                  // Unique identifier for the user
	Username  string     `json:"username"`            // Display name
	Email     string     `json:"email"`               // User's email address
	Role      RoleType   `json:"role"`                // Console role
	Active    bool       `json:"isActive"`            // Whether the account is active
	CreatedAt time.Time  `json:"createdAt"`           // When the account was created
	LastLogin *time.Time `json:"lastLogin,omitempty"` // Last time the user logged in
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// FromClaims builds a User from decoded token claims. Missing claims fall
// back to sensible derivations: the username comes from the email's local
// part, the ID from the subject claim or a fresh UUID.
func FromClaims(claims *token.Claims, now time.Time) *User {
	email := utils.Value(claims.Email)

	id := utils.Value(claims.Sub)
	if id == "" {
		id = uuid.New().String()
	}

	role := RoleUser
	for _, r := range claims.Roles {
		// Role claims arrive title-cased from some identity providers.
		if strings.EqualFold(r, string(RoleAdmin)) {
			role = RoleAdmin
			break
		}
	}

	return &User{
		ID:        id,
		Username:  usernameFromEmail(email),
		Email:     email,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		LastLogin: utils.Ptr(now),
	}
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
