package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User    UserRepository
	Product ProductRepository
}

// DatabaseHealth is implemented by database handles checked by the health endpoint.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Database is a schema-managing database handle.
type Database interface {
	DatabaseHealth
	Migrator
}
