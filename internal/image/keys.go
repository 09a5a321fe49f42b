package image

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "images"

// KeyNamer derives logical identifiers and hierarchical storage keys.
// Identifiers embed random entropy plus a timestamp component, so two calls
// never collide regardless of filename; every derived key embeds the
// identifier, so keys are never reused across distinct identifiers.
type KeyNamer struct {
	now func() time.Time
}

// NewKeyNamer returns a KeyNamer using the wall clock.
func NewKeyNamer() *KeyNamer {
	return &KeyNamer{now: time.Now}
}

// NewImageID generates a unique logical identifier of the form
// "img_{16 hex chars}_{unix seconds}".
func (n *KeyNamer) NewImageID() string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("img_%s_%d", entropy, n.now().Unix())
}

// ObjectKey builds the storage key for the original upload:
// "images/YYYY/MM/DD/{imageID}_{filename}", dated at generation time.
func (n *KeyNamer) ObjectKey(imageID, filename string) string {
	t := n.now()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s_%s", keyPrefix, t.Year(), int(t.Month()), t.Day(), imageID, filename)
}

// VariantKey derives the sibling key for one variant by splicing "_{variant}"
// in front of the base key's extension. A base key without an extension gets
// "_{variant}.jpg" appended.
func VariantKey(baseKey, variant string) string {
	if i := strings.LastIndex(baseKey, "."); i > strings.LastIndex(baseKey, "/") {
		return fmt.Sprintf("%s_%s%s", baseKey[:i], variant, baseKey[i:])
	}
	return fmt.Sprintf("%s_%s.jpg", baseKey, variant)
}
