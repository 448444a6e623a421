// Package storage defines the archive that keeps delivered inventory reports.
// Backends are addressed by slash-separated keys built with ReportKey.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored content.
var ErrObjectNotFound = errors.New("archived object not found")

// ErrInvalidKey is returned for empty keys or keys that escape the archive root.
var ErrInvalidKey = errors.New("invalid archive key")

// Archive stores report files.
// Implementations must be safe for concurrent use.
type Archive interface {
	// Put stores content under key, replacing any previous content.
	// It returns a backend-specific location (file path or s3:// URI) for logging.
	Put(ctx context.Context, key string, r io.Reader, size int64) (location string, err error)

	// Open returns the content stored under key. The caller must close it.
	// Returns ErrObjectNotFound when nothing is stored.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key has stored content.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
