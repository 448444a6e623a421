// Package repository defines data access interfaces for Stockwarden.
// These interfaces abstract database operations, allowing for different implementations
// (PostgreSQL, SQLite, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
// Email lookups are case-insensitive.
type UserRepository interface {
	// Create creates a new user. Returns ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByVerificationTokenHash retrieves the user holding an outstanding verification token.
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id string) error

	// List returns users with pagination, ordered by creation time.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Product Repository
// =============================================================================

// ProductRepository persists catalog snapshots.
// The in-memory catalog is authoritative while the server runs; the repository
// only stores what the last checkpoint wrote.
type ProductRepository interface {
	// List returns every stored product in the order it was written.
	List(ctx context.Context) ([]domain.Product, error)

	// ReplaceAll atomically replaces the stored catalog with products.
	ReplaceAll(ctx context.Context, products []domain.Product) error
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	// Zero means no limit.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
