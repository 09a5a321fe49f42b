package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decoded is a parsed raster image ready for variant generation.
type Decoded struct {
	Image  stdimage.Image
	Format string // codec name as registered: "jpeg", "png", "gif", "webp"
	Width  int
	Height int
	// Flattened is true when the source carried alpha or a palette and was
	// composited onto white. The stored original must then be re-encoded so
	// every artifact shares one background policy.
	Flattened bool
}

// Decode parses raw bytes into a raster image. Sources with an alpha channel
// or a palette are flattened onto an opaque white background, since variants
// re-encode to targets without alpha. Returns ErrInvalidImageData when the
// bytes do not parse as a supported format.
func Decode(data []byte) (*Decoded, error) {
	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}

	d := &Decoded{Image: img, Format: format}
	if !isOpaque(img) {
		bounds := img.Bounds()
		background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
		d.Image = imaging.Overlay(background, img, stdimage.Pt(0, 0), 1.0)
		d.Flattened = true
	}

	b := d.Image.Bounds()
	d.Width, d.Height = b.Dx(), b.Dy()
	return d, nil
}

// ContentType returns the MIME type for the decoded format.
func (d *Decoded) ContentType() string {
	return "image/" + d.Format
}

func isOpaque(img stdimage.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
