// Package filestorage archives raw schema uploads on the local disk or in S3.
package filestorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lychee-technology/sweet"
)

var (
	// ErrNotFound is returned by Load when no object exists under the key.
	ErrNotFound = errors.New("filestorage: key not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the base.
	ErrInvalidKey = errors.New("filestorage: invalid key")
)

// Storage is a flat key/value blob store. Keys use forward slashes.
type Storage interface {
	// Save writes data under key, replacing any previous object, and returns
	// the key it was stored under.
	Save(ctx context.Context, key string, data []byte) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete reports whether an object was removed.
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// New builds the archive selected by cfg.Backend. The "none" backend
// returns a nil Storage.
func New(ctx context.Context, cfg sweet.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStorage(cfg.LocalPath)
	case "s3":
		return NewS3StorageFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("filestorage: unknown backend %q", cfg.Backend)
	}
}
