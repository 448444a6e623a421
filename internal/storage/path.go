package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ReportKey returns the archive key for a report file generated on date by
// one dispatch. Keys are sharded by day, then by dispatch:
//
//	date: 2026-03-14, dispatch: "150000-1a2b3c4d", name: "inventory-report-2026-03-14.csv"
//	result: "2026/03/14/150000-1a2b3c4d/inventory-report-2026-03-14.csv"
func ReportKey(date time.Time, dispatch, name string) string {
	return path.Join(date.Format("2006"), date.Format("01"), date.Format("02"), path.Base(dispatch), path.Base(name))
}

// CleanKey normalizes key and rejects keys that are empty or climb out of the root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// ComputePath maps key to a file below basePath.
func ComputePath(basePath, key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(basePath, filepath.FromSlash(cleaned)), nil
}
