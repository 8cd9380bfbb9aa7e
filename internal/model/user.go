package model

import (
	"strings"
	"time"
)

// Role is the coarse authorization role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// ParseRole upper-cases and validates a role name. Unknown names yield "".
func ParseRole(raw string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Valid() {
		return ""
	}
	return r
}

// Principal is the authenticated caller of an operation. The zero value
// represents an unauthenticated caller. Principals are resolved from a
// bearer token per request and never persisted.
type Principal struct {
	UserID uint64
	Role   Role
}

// Authenticated reports whether p identifies a real user with a known role.
func (p Principal) Authenticated() bool {
	return p.UserID != 0 && p.Role.Valid()
}

// User represents a row of the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – CUSTOMER, OWNER or ADMIN.
//	IsActive     – whether the account may sign in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA‑256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Usable reports whether the token can still be exchanged at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
