package storage

import (
	"context"
	"io"
	"time"
)

// Store is the object store used for documents and receipts.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// NewFromEnv returns the S3 store when enabled, otherwise an in-process store
// suitable for development.
func NewFromEnv() (Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled() {
		return NewMemoryStore("http://localhost/objects"), nil
	}
	return NewS3Store(cfg)
}
