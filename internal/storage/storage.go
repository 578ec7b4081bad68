// Package storage persists rendered documents produced by the HTTP front.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	u "carbone2pdf/internal/utils"
)

// Store writes a named document and returns where it ended up.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ErrInvalidName is returned for names that could escape the target location.
var ErrInvalidName = errors.New("invalid document name")

var validName = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidName reports whether name is a plain file name.
func ValidName(name string) bool {
	return validName.MatchString(name) && name != "." && name != ".."
}

// New selects the store configured in cfg.
func New(ctx context.Context, cfg u.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
