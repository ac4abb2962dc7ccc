package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by PresignGet when the key has no object
// behind it. Both SDKs will happily sign URLs for absent objects, so
// backends check existence before signing.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the evidence-store operations across backends.
// Evidence objects are bulk-loaded out of band; the application only lists
// and mints read URLs.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	List(ctx context.Context, prefix string) ([]string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket verifies the configured bucket is reachable.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// List returns the keys of all objects under the prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}

// PresignGet mints a time-limited read URL for an existing object.
func (s *Storage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.backend.PresignGet(ctx, key, expiry)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
