// Package imaging normalises uploaded item photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for anything other than JPEG, PNG or WebP.
var ErrUnsupportedFormat = errors.New("imaging: unsupported image format")

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Image is a normalised photo ready for storage.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Normalizer bounds photo dimensions and re-encodes them.
type Normalizer struct {
	MaxDim  int
	Quality int
}

// NewNormalizer returns a Normalizer. Non-positive values fall back to
// 1024px and quality 85.
func NewNormalizer(maxDim, quality int) *Normalizer {
	if maxDim <= 0 {
		maxDim = 1024
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Normalizer{MaxDim: maxDim, Quality: quality}
}

// Normalize sniffs the format from the bytes, downscales to MaxDim and
// re-encodes. Opaque images become JPEG; images with transparency stay PNG.
func (n *Normalizer) Normalize(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, n.MaxDim)
	bounds := img.Bounds()

	var buf bytes.Buffer
	mime := "image/jpeg"
	if hasAlpha(img) {
		mime = "image/png"
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.Quality})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", mime, err)
	}

	return &Image{
		Data:   buf.Bytes(),
		MIME:   mime,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// downscale resizes img so neither dimension exceeds maxDim, keeping the
// aspect ratio. Smaller images are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
