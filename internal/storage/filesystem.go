package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemArchive stores reports below a local directory.
type FilesystemArchive struct {
	basePath string
	tempDir  string
	logger   zerolog.Logger
}

// NewFilesystemArchive creates the directories and returns an archive.
// tempDir holds partial writes and should be on the same filesystem as basePath.
func NewFilesystemArchive(basePath, tempDir string, logger zerolog.Logger) (*FilesystemArchive, error) {
	if tempDir == "" {
		tempDir = filepath.Join(basePath, ".tmp")
	}
	for _, dir := range []string{basePath, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
		}
	}
	return &FilesystemArchive{
		basePath: basePath,
		tempDir:  tempDir,
		logger:   logger.With().Str("component", "archive").Str("backend", "filesystem").Logger(),
	}, nil
}

// Put writes r to a temp file and renames it into place.
func (a *FilesystemArchive) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	target, err := ComputePath(a.basePath, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(a.tempDir, "report-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, wrote %d", size, written)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}

	a.logger.Debug().Str("key", key).Int64("size", written).Msg("report archived")
	return target, nil
}

// Open opens the file stored under key.
func (a *FilesystemArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := ComputePath(a.basePath, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	return f, nil
}

// Exists checks for the file stored under key.
func (a *FilesystemArchive) Exists(ctx context.Context, key string) (bool, error) {
	target, err := ComputePath(a.basePath, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat report: %w", err)
	}
	return true, nil
}

// Delete removes the file stored under key.
func (a *FilesystemArchive) Delete(ctx context.Context, key string) error {
	target, err := ComputePath(a.basePath, key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

var _ Archive = (*FilesystemArchive)(nil)
