package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imagehub/service/internal/storage"
)

// Service orchestrates the ingestion pipeline and owns the consistency
// contract between the object store and the metadata store: objects are
// written before the row, and any failure past the first put triggers a
// best-effort compensating rollback of everything written in that request.
type Service struct {
	store storage.ObjectStore
	meta  MetadataStore
	valid *Validator
	keys  *KeyNamer
}

// NewService wires the orchestrator with its collaborators.
func NewService(store storage.ObjectStore, meta MetadataStore, valid *Validator) *Service {
	return &Service{
		store: store,
		meta:  meta,
		valid: valid,
		keys:  NewKeyNamer(),
	}
}

// Existence reports where an asset currently lives.
type Existence struct {
	ImageID    string `json:"imageId"`
	StorageKey string `json:"storageKey,omitempty"`
	InMetadata bool   `json:"inMetadata"`
	InStore    bool   `json:"inStore"`
}

// RemovalResult reports the per-store outcome of a delete, since the two can
// diverge.
type RemovalResult struct {
	ImageID             string `json:"imageId"`
	RemovedFromStore    bool   `json:"deletedFromStore"`
	RemovedFromMetadata bool   `json:"deletedFromMetadata"`
}

type pendingUpload struct {
	name     string
	key      string
	data     []byte
	metadata map[string]string
}

// Ingest runs the full pipeline on raw upload bytes: validate, decode,
// generate variants, upload every artifact, then commit one metadata row.
// Two calls with identical content produce two distinct assets; deduplication
// is deliberately absent.
func (s *Service) Ingest(ctx context.Context, data []byte, filename, declaredContentType string) (*Asset, error) {
	if err := s.valid.Validate(filename, int64(len(data))); err != nil {
		return nil, err
	}

	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}

	// Callers often declare a generic type (or none); the decoded format is
	// authoritative unless an explicit image type was supplied.
	contentType := declaredContentType
	if !strings.HasPrefix(contentType, "image/") {
		contentType = decoded.ContentType()
	}

	artifacts, err := GenerateVariants(decoded, data)
	if err != nil {
		return nil, err
	}

	imageID := s.keys.NewImageID()
	baseKey := s.keys.ObjectKey(imageID, filename)

	uploads := make([]pendingUpload, 0, len(Variants)+1)
	uploads = append(uploads, pendingUpload{
		name: VariantOriginal,
		key:  baseKey,
		data: artifacts[VariantOriginal],
		metadata: map[string]string{
			"image-id":          imageID,
			"original-filename": filename,
		},
	})
	for _, v := range Variants {
		uploads = append(uploads, pendingUpload{
			name: v.Name,
			key:  VariantKey(baseKey, v.Name),
			data: artifacts[v.Name],
			metadata: map[string]string{
				"image-id":          imageID,
				"original-filename": filename,
				"variant":           v.Name,
			},
		})
	}

	uploaded, err := s.uploadAll(ctx, uploads, contentType)
	if err != nil {
		s.rollback(ctx, uploaded)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	urls := make(map[string]string, len(uploads))
	for _, u := range uploads {
		urls[u.name] = s.store.PublicURL(u.key)
	}

	asset := &Asset{
		ImageID:     imageID,
		Filename:    filename,
		StorageKey:  baseKey,
		URL:         urls[VariantOriginal],
		Variants:    urls,
		FileSize:    int64(len(data)),
		ContentType: contentType,
	}

	if err := s.meta.Insert(ctx, asset); err != nil {
		// An uncommitted row means the asset is unreachable; reclaim the blobs.
		s.rollback(ctx, allKeys(uploads))
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadataCommit, err)
	}
	return asset, nil
}

// IngestBase64 decodes a base64 payload (optionally carrying a data-URL
// prefix) and feeds it through Ingest.
func (s *Service) IngestBase64(ctx context.Context, filename, base64Data, declaredContentType string) (*Asset, error) {
	if i := strings.IndexByte(base64Data, ','); i >= 0 {
		base64Data = base64Data[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64 payload", ErrInvalidImageData)
	}
	return s.Ingest(ctx, data, filename, declaredContentType)
}

// Retrieve returns the original bytes and recorded content type for imageID.
// A row whose blob has gone missing reports ErrNotFound; transport failures
// from the store report ErrStoreUnavailable.
func (s *Service) Retrieve(ctx context.Context, imageID string) ([]byte, *Asset, error) {
	a, err := s.meta.GetByImageID(ctx, imageID)
	if err != nil {
		return nil, nil, err
	}
	data, _, err := s.store.Get(ctx, a.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, fmt.Errorf("%w: object missing for %s", ErrNotFound, imageID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return data, a, nil
}

// Describe returns the metadata row for imageID.
func (s *Service) Describe(ctx context.Context, imageID string) (*Asset, error) {
	return s.meta.GetByImageID(ctx, imageID)
}

// List returns metadata rows newest first.
func (s *Service) List(ctx context.Context, offset, limit int) ([]Asset, error) {
	return s.meta.List(ctx, offset, limit)
}

// PresignedURL returns a time-limited access URL for the original object.
// Signing is delegated entirely to the store.
func (s *Service) PresignedURL(ctx context.Context, imageID string, expiry time.Duration) (string, error) {
	a, err := s.meta.GetByImageID(ctx, imageID)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignedURL(ctx, a.StorageKey, expiry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return u, nil
}

// CheckExistence reports whether imageID has a metadata row and whether its
// primary object is present in the store.
func (s *Service) CheckExistence(ctx context.Context, imageID string) (*Existence, error) {
	a, err := s.meta.GetByImageID(ctx, imageID)
	if errors.Is(err, ErrNotFound) {
		return &Existence{ImageID: imageID}, nil
	}
	if err != nil {
		return nil, err
	}
	inStore, err := s.store.Exists(ctx, a.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &Existence{
		ImageID:    imageID,
		StorageKey: a.StorageKey,
		InMetadata: true,
		InStore:    inStore,
	}, nil
}

// Remove deletes the metadata row and attempts removal of every associated
// object. Object deletion is best-effort and never blocks the row delete; the
// two outcomes are reported separately because they can diverge.
func (s *Service) Remove(ctx context.Context, imageID string) (*RemovalResult, error) {
	a, err := s.meta.GetByImageID(ctx, imageID)
	if err != nil {
		return nil, err
	}

	// S3 deletes of missing keys succeed silently, so presence has to be
	// checked up front to report an out-of-band deletion truthfully.
	removedStore, err := s.store.Exists(ctx, a.StorageKey)
	if err != nil {
		log.Printf("image: existence check for %q failed: %v", a.StorageKey, err)
		removedStore = false
	}
	for _, key := range assetKeys(a.StorageKey) {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Printf("image: delete %q failed: %v", key, err)
			removedStore = false
		}
	}

	if err := s.meta.DeleteByImageID(ctx, imageID); err != nil {
		return nil, err
	}

	return &RemovalResult{
		ImageID:             imageID,
		RemovedFromStore:    removedStore,
		RemovedFromMetadata: true,
	}, nil
}

// uploadAll puts every artifact to the store concurrently and returns the keys
// that made it, in completion order. The caller sees either full success or
// the first failure plus the reversal list.
func (s *Service) uploadAll(ctx context.Context, uploads []pendingUpload, contentType string) ([]string, error) {
	var (
		mu       sync.Mutex
		uploaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range uploads {
		u := u
		g.Go(func() error {
			if err := s.store.Put(gctx, u.key, u.data, contentType, u.metadata); err != nil {
				return fmt.Errorf("put %s: %w", u.name, err)
			}
			mu.Lock()
			uploaded = append(uploaded, u.key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return uploaded, err
	}
	return uploaded, nil
}

// rollback walks the reversal list backwards and deletes each object.
// Failures are advisory only: they are logged for out-of-band reconciliation
// and never change the error reported to the caller.
func (s *Service) rollback(ctx context.Context, keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		if err := s.store.Delete(ctx, keys[i]); err != nil {
			log.Printf("image: rollback delete %q failed, orphan left behind: %v", keys[i], err)
		}
	}
}

func assetKeys(baseKey string) []string {
	keys := make([]string, 0, len(Variants)+1)
	keys = append(keys, baseKey)
	for _, v := range Variants {
		keys = append(keys, VariantKey(baseKey, v.Name))
	}
	return keys
}

func allKeys(uploads []pendingUpload) []string {
	keys := make([]string, len(uploads))
	for i, u := range uploads {
		keys[i] = u.key
	}
	return keys
}
