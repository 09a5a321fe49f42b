package image

import (
	"bytes"
	"fmt"
	stdimage "image"

	"github.com/disintegration/imaging"
)

// Variant is one resize/quality profile.
type Variant struct {
	Name      string
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Variants is the fixed derivation table, in upload order.
var Variants = []Variant{
	{Name: "thumbnail", MaxWidth: 150, MaxHeight: 150, Quality: 85},
	{Name: "small", MaxWidth: 300, MaxHeight: 300, Quality: 85},
	{Name: "medium", MaxWidth: 800, MaxHeight: 800, Quality: 90},
	{Name: "large", MaxWidth: 1920, MaxHeight: 1920, Quality: 95},
}

// originalQuality is used when the original itself must be re-encoded after
// flattening.
const originalQuality = 95

// GenerateVariants produces the full artifact set for one upload: the original
// bytes plus one re-encoding per table entry. Resizing fits within the bounds
// preserving aspect ratio and never upsizes; re-encoding uses Lanczos
// resampling and the table quality for lossy targets.
//
// Generation is all-or-nothing: any encode failure returns
// ErrVariantGeneration and no partial set.
func GenerateVariants(d *Decoded, original []byte) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Variants)+1)

	orig := original
	if d.Flattened {
		b, err := encode(d.Image, d.Format, originalQuality)
		if err != nil {
			return nil, fmt.Errorf("%w: re-encode original: %v", ErrVariantGeneration, err)
		}
		orig = b
	}
	out[VariantOriginal] = orig

	for _, v := range Variants {
		resized := imaging.Fit(d.Image, v.MaxWidth, v.MaxHeight, imaging.Lanczos)
		b, err := encode(resized, d.Format, v.Quality)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrVariantGeneration, v.Name, err)
		}
		out[v.Name] = b
	}
	return out, nil
}

// encode writes img in the source format where an encoder exists. webp has no
// encoder in the module graph, so webp sources re-encode as JPEG; the decoder
// has already flattened them to opaque RGB.
func encode(img stdimage.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
