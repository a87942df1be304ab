package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/yuanying/bookpack/internal/book"
)

const (
	defaultJPEGQuality = 85
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// ImageOptimizer downscales raster images wider than MaxWidth before they
// are embedded in a package.
type ImageOptimizer struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// NewImageOptimizer creates an optimizer. A non-positive quality selects the
// default of 85; quality is capped at 100.
func NewImageOptimizer(maxWidth, quality int) *ImageOptimizer {
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	return &ImageOptimizer{
		MaxWidth:    maxWidth,
		JPEGQuality: quality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Optimize returns a resized copy of a when it is a JPEG or PNG wider than
// MaxWidth. Anything else is returned as-is. A non-empty warning explains why
// an image was passed through unchanged; the returned asset is always usable.
func (o *ImageOptimizer) Optimize(a book.Asset) (book.Asset, string) {
	format, ok := resizableFormat(a.MediaType)
	if !ok || o.MaxWidth <= 0 {
		return a, ""
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		return a, fmt.Sprintf("image decode failed: %v", err)
	}
	if cfg.Width <= o.MaxWidth {
		return a, ""
	}
	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
		return a, fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(a.Data), imaging.AutoOrientation(true))
	if err != nil {
		return a, fmt.Sprintf("image decode failed: %v", err)
	}
	resized := imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(o.JPEGQuality), imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return a, fmt.Sprintf("image encode failed: %v", err)
	}

	out := a
	out.Data = buf.Bytes()
	out.Width = resized.Bounds().Dx()
	out.Height = resized.Bounds().Dy()
	return out, ""
}

// resizableFormat maps the media types the optimizer re-encodes. GIFs are
// left alone so animations survive.
func resizableFormat(mediaType string) (imaging.Format, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	}
	return 0, false
}

// probeImage returns the pixel dimensions of a raster image, or zeros when
// the format is unknown or the data is corrupt.
func probeImage(data []byte) (width, height int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
