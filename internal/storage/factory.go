package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/config"
)

// New returns the archive selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Archive, error) {
	switch cfg.Backend {
	case "", "filesystem":
		return NewFilesystemArchive(cfg.DataDir, cfg.TempDir, logger)
	case "s3":
		return NewS3Archive(ctx, cfg.S3, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
