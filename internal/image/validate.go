package image

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Validator performs the cheap pre-decode checks on an upload: filename
// extension against an allow-list and byte length against a ceiling. Both run
// before any decode work so malformed payloads fail without touching a codec.
type Validator struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// NewValidator builds a Validator from the configured extension allow-list
// (case-insensitive) and maximum accepted byte size.
func NewValidator(extensions []string, maxBytes int64) *Validator {
	allowed := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Validator{allowed: allowed, maxBytes: maxBytes}
}

// Validate checks the filename extension and the materialized byte length.
// Size must be the length of the actual bytes, never a caller-declared length.
func (v *Validator) Validate(filename string, size int64) error {
	ext := Extension(filename)
	if _, ok := v.allowed[ext]; !ok {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedFormat, ext, strings.Join(v.Allowed(), ", "))
	}
	if size > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrPayloadTooLarge, size, v.maxBytes)
	}
	return nil
}

// Allowed returns the allow-listed extensions, sorted.
func (v *Validator) Allowed() []string {
	out := make([]string, 0, len(v.allowed))
	for e := range v.allowed {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// MaxBytes returns the configured size ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Extension returns the lowercased filename suffix after the last dot,
// without the dot. Empty when the filename has no extension.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
