package image_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagehub/service/internal/image"
	"github.com/imagehub/service/internal/storage"
)

// makeJPEG returns an opaque JPEG of the given dimensions.
func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// makePNGWithAlpha returns a PNG whose top-left quadrant is fully transparent.
func makePNGWithAlpha(t *testing.T, width, height int) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 && y < height/2 {
				img.Set(x, y, color.NRGBA{})
				continue
			}
			img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// base64JPEG returns an opaque JPEG of the given dimensions, base64-encoded.
func base64JPEG(t *testing.T, width, height int) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(makeJPEG(t, width, height))
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := stdimage.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// fakeStore is an in-memory ObjectStore that counts collaborator calls and can
// be told to fail specific operations.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]fakeObject

	puts    int
	deletes int

	failPutContaining string
	failGet           bool
	failDelete        bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]fakeObject{}}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failPutContaining != "" && strings.Contains(key, f.failPutContaining) {
		return errors.New("simulated put failure")
	}
	f.objects[key] = fakeObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		metadata:    metadata,
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, "", errors.New("simulated transport failure")
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return obj.data, obj.contentType, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDelete {
		return errors.New("simulated delete failure")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://store.example/%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://cdn.example/" + key
}

func (f *fakeStore) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeStore) removeDirect(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
}

// fakeMeta is an in-memory MetadataStore.
type fakeMeta struct {
	mu        sync.Mutex
	rows      map[string]image.Asset
	order     []string // insertion order, oldest first
	inserts   int
	insertErr error
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{rows: map[string]image.Asset{}}
}

func (f *fakeMeta) Insert(_ context.Context, a *image.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[a.ImageID]; ok {
		return image.ErrConflict
	}
	a.ID = fmt.Sprintf("row-%d", f.inserts)
	a.CreatedAt = time.Now().UTC()
	f.rows[a.ImageID] = *a
	f.order = append(f.order, a.ImageID)
	return nil
}

func (f *fakeMeta) GetByImageID(_ context.Context, imageID string) (*image.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[imageID]
	if !ok {
		return nil, image.ErrNotFound
	}
	out := a
	return &out, nil
}

func (f *fakeMeta) DeleteByImageID(_ context.Context, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[imageID]; !ok {
		return image.ErrNotFound
	}
	delete(f.rows, imageID)
	return nil
}

func (f *fakeMeta) List(_ context.Context, offset, limit int) ([]image.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []image.Asset
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.rows[f.order[i]])
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func newTestService() (*image.Service, *fakeStore, *fakeMeta) {
	store := newFakeStore()
	meta := newFakeMeta()
	valid := image.NewValidator([]string{"jpg", "jpeg", "png", "gif", "webp"}, 10*1024*1024)
	return image.NewService(store, meta, valid), store, meta
}
