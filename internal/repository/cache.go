// Package repository defines data access interfaces for Stockwarden.
package repository

import (
	"context"
	"time"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache defines the interface for short-lived keyed state.
// Implemented in memory for single-node deployments and on Redis when several
// server instances share cooldowns, OTPs and token revocations.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// CompareAndDelete removes key only if it currently holds value.
	// Returns true if the key was removed.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining TTL for a key.
	// Returns -1 if the key doesn't exist, -2 if no TTL is set.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Increment atomically increments an integer value.
	// A key created by Increment expires after ttl; existing keys keep their TTL.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// AlertCooldown returns the key marking a product inside its alert cooldown.
func (CacheKey) AlertCooldown(productID string) string {
	return "alert:cooldown:" + productID
}

// OTP returns the key holding the outstanding one-time password for a user.
func (CacheKey) OTP(userID string) string {
	return "auth:otp:" + userID
}

// OTPAttempts returns the key counting failed OTP attempts for a user.
func (CacheKey) OTPAttempts(userID string) string {
	return "auth:otp:attempts:" + userID
}

// RevokedToken returns the key marking a token id as revoked.
func (CacheKey) RevokedToken(tokenID string) string {
	return "auth:revoked:" + tokenID
}
