// Package domain contains the core business entities for Stockwarden.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Catalog Errors
	// ===========================================

	// ErrDuplicateKey indicates a product with the same ID already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound indicates the requested product or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a negative price or quantity, or a missing required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ===========================================
	// Authentication/Authorization Errors
	// ===========================================

	// ErrInvalidCredentials indicates no user matches the email and password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden indicates the session role is below the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated indicates the operation requires an authenticated session.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrEmailUnverified indicates the user has not proven email ownership yet.
	ErrEmailUnverified = errors.New("email address is not verified")

	// ErrInvalidOTP indicates the one-time password does not match, is consumed or expired.
	ErrInvalidOTP = errors.New("invalid one-time password")

	// ErrDuplicateEmail indicates a user with the same email (case-insensitive) exists.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrInvalidToken indicates the email verification token does not match or expired.
	ErrInvalidToken = errors.New("invalid verification token")

	// ===========================================
	// Collaborator Errors
	// ===========================================

	// ErrNotificationFailure indicates the notifier could not deliver a message.
	// It never rolls back the state change that triggered the notification.
	ErrNotificationFailure = errors.New("notification failure")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., product ID, email).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// IsClientError reports whether err is one of the domain kinds caused by caller input
// rather than by infrastructure.
func IsClientError(err error) bool {
	for _, kind := range []error{
		ErrDuplicateKey, ErrNotFound, ErrInvalidArgument, ErrInvalidCredentials,
		ErrForbidden, ErrUnauthenticated, ErrEmailUnverified, ErrInvalidOTP,
		ErrDuplicateEmail, ErrInvalidToken,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
