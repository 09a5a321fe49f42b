// Package image implements the image ingestion pipeline: validation, decoding,
// multi-variant generation, object-store upload with compensating rollback, and
// metadata persistence.
package image

import (
	"context"
	"errors"
	"time"
)

// VariantOriginal is the variant-map entry holding the uploaded bytes.
const VariantOriginal = "original"

// Asset is one persisted image metadata row. An Asset exists only when the
// original and every variant were durably written to the object store.
type Asset struct {
	ID          string            `json:"id"`
	ImageID     string            `json:"imageId"`
	Filename    string            `json:"filename"`
	StorageKey  string            `json:"storageKey"`
	URL         string            `json:"url"`
	Variants    map[string]string `json:"variants"`
	FileSize    int64             `json:"fileSize"`
	ContentType string            `json:"contentType"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Sentinel errors for every failure kind the pipeline can surface. Handlers
// map these to HTTP statuses with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrInvalidImageData  = errors.New("invalid image data")
	ErrVariantGeneration = errors.New("variant generation failed")
	ErrUploadFailed      = errors.New("object upload failed")
	ErrMetadataCommit    = errors.New("metadata commit failed")
	ErrNotFound          = errors.New("image not found")
	ErrStoreUnavailable  = errors.New("object store unavailable")
	ErrConflict          = errors.New("image id already exists")
)

// MetadataStore persists and looks up image metadata rows.
type MetadataStore interface {
	// Insert writes one row and fills in the generated ID and CreatedAt.
	// Returns ErrConflict when the image id is already taken.
	Insert(ctx context.Context, a *Asset) error
	// GetByImageID returns the row for imageID, or ErrNotFound.
	GetByImageID(ctx context.Context, imageID string) (*Asset, error)
	// DeleteByImageID removes the row for imageID, or returns ErrNotFound.
	DeleteByImageID(ctx context.Context, imageID string) error
	// List returns rows newest first.
	List(ctx context.Context, offset, limit int) ([]Asset, error)
}
