// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider (MinIO, AWS S3).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Get when no object exists under the given key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the interface for storing and retrieving binary objects.
type ObjectStore interface {
	// Put writes data under key with the given content type and user metadata.
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	// Get returns the object bytes and stored content type for key.
	// Returns ErrObjectNotFound when no object exists under the key.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// PresignedURL returns a time-limited URL granting read access to key.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PublicURL constructs the browser-accessible URL for a given key. No I/O.
	PublicURL(key string) string
}
