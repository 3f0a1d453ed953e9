package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Accounts / Profiles / Roles
// ============================================================

// Role is the authorization role of an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// DefaultRole is the effective role of an account without a role assignment.
const DefaultRole = RoleOperator

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", &ErrValidation{Field: "role", Message: fmt.Sprintf("role inválida: %q", s)}
	}
	return r, nil
}

// Account is the credential-bearing identity owned by the identity provider.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"nome,omitempty"`
}

// Profile is the display-identity row mirroring an Account.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"nome"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// RoleAssignment is the authorization row of an Account. At most one per user.
type RoleAssignment struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// UserSummary is one row of the admin user-management screen.
type UserSummary struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"nome"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Account      Account   `json:"user"`
}

// Caller is the authenticated principal of a request, with its role resolved for this request only.
type Caller struct {
	UserID       string
	Email        string
	Role         Role
	RoleResolved bool
}

// IsAdmin reports whether the caller may use admin-only operations.
func (c Caller) IsAdmin() bool {
	return c.RoleResolved && c.Role == RoleAdmin
}

// SessionInfo is the body of GET /v1/me.
type SessionInfo struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	IsAdmin      bool   `json:"isAdmin"`
	RoleResolved bool   `json:"roleResolved"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateRoleRequest is the body for PUT /v1/admin/users/{userId}/role.
type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin operator"`
}
