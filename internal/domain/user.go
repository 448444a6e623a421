// Package domain contains the core business entities for Stockwarden.
// These are pure Go structs with no external dependencies, representing
// the catalog items and the people allowed to change them.
package domain

import (
	"strings"
	"time"
)

// User represents a registered user in the system.
type User struct {
	// ID is the unique identifier for the user (UUID string).
	ID string `json:"id"`

	// FullName is the display name.
	FullName string `json:"full_name"`

	// Email is unique across users, compared case-insensitively.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role is the authorization rank. Self-service paths never change it.
	Role Role `json:"role"`

	// Verified flips true once the user proves email ownership.
	Verified bool `json:"verified"`

	// VerificationTokenHash is the SHA-256 digest of the outstanding verification token.
	VerificationTokenHash string `json:"-"`

	// VerificationExpiresAt bounds the validity of the outstanding verification token.
	VerificationExpiresAt *time.Time `json:"-"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new unverified VIEWER.
func NewUser(id, fullName, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           id,
		FullName:     fullName,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		Role:         RoleViewer,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail returns the key used for case-insensitive email comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasEmail reports whether the user owns email, ignoring case.
func (u *User) HasEmail(email string) bool {
	return NormalizeEmail(u.Email) == NormalizeEmail(email)
}

// Clone returns a deep copy so callers cannot mutate repository state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.VerificationExpiresAt != nil {
		t := *u.VerificationExpiresAt
		c.VerificationExpiresAt = &t
	}
	return &c
}
