package covers

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	defaultThumbnailWidth = 300
	defaultJPEGQuality    = 85
	defaultMaxPixels      = 100 * 1000 * 1000 // 100 megapixels
)

// Thumbnailer produces downscaled copies of cover images
type Thumbnailer struct {
	Width       int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// NewThumbnailer creates a thumbnailer for the given width. A non-positive
// width uses the default.
func NewThumbnailer(width int) *Thumbnailer {
	if width <= 0 {
		width = defaultThumbnailWidth
	}
	return &Thumbnailer{
		Width:       width,
		JPEGQuality: defaultJPEGQuality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Thumbnail decodes data and returns it resized to at most Width pixels
// wide. Images with transparency stay PNG; everything else becomes JPEG.
// The returned media type describes the encoded bytes.
func (t *Thumbnailer) Thumbnail(data []byte) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("image decode failed: %w", err)
	}
	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if t.MaxPixels > 0 && pixels > uint64(t.MaxPixels) {
		return nil, "", fmt.Errorf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("image decode failed: %w", err)
	}

	processed := src
	if t.Width > 0 && src.Bounds().Dx() > t.Width {
		processed = imaging.Resize(src, t.Width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if hasAlpha(processed) {
		if err := imaging.Encode(&buf, processed, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, "", fmt.Errorf("png encode failed: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := imaging.Encode(&buf, processed, imaging.JPEG, imaging.JPEGQuality(t.JPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// ThumbnailPath returns where the thumbnail of a stored cover lives
func ThumbnailPath(coverPath, mediaType string) string {
	dir := filepath.Dir(coverPath)
	base := filepath.Base(coverPath)
	base = base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, "thumbs", base+"."+Extension(mediaType))
}

// StoreThumbnail creates a thumbnail for the cover stored at coverPath and
// writes it next to it under thumbs/.
func (t *Thumbnailer) StoreThumbnail(coverPath string) (string, error) {
	data, err := os.ReadFile(coverPath)
	if err != nil {
		return "", fmt.Errorf("read cover: %w", err)
	}
	thumb, mediaType, err := t.Thumbnail(data)
	if err != nil {
		return "", err
	}

	dest := ThumbnailPath(coverPath, mediaType)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := writeFileAtomic(dir, dest, thumb); err != nil {
		return "", fmt.Errorf("write thumbnail %s: %w", dest, err)
	}
	return dest, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
