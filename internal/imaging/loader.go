package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for blobs that no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// mimeTypes maps decoder names to the MIME type stored with image records.
var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// MimeType returns the MIME type for a decoder format name, or
// "application/octet-stream" if it is unknown.
func MimeType(format string) string {
	if m, ok := mimeTypes[format]; ok {
		return m
	}
	return "application/octet-stream"
}

// ErrTooLarge is returned for images whose header declares more pixels than
// the decode budget.
var ErrTooLarge = errors.New("image too large")

// DefaultMaxPixels is the decode budget used by Decode, DecodeBytes and Load.
const DefaultMaxPixels = 25_000_000

// Decode reads an image from r and converts it to an NRGBA buffer anchored
// at (0,0). It returns the decoder format name ("png", "jpeg", ...).
func Decode(r io.Reader) (*image.NRGBA, string, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	return DecodeBytesLimit(blob, DefaultMaxPixels)
}

// DecodeBytes is Decode over an in-memory blob.
func DecodeBytes(blob []byte) (*image.NRGBA, string, error) {
	return DecodeBytesLimit(blob, DefaultMaxPixels)
}

// DecodeBytesLimit decodes blob after checking the dimensions in its header,
// so an oversized image is rejected before any pixel buffer is allocated.
// maxPixels <= 0 means DefaultMaxPixels.
func DecodeBytesLimit(blob []byte, maxPixels int) (*image.NRGBA, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("decoding image: no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if cfg.Width > maxPixels/cfg.Height {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return ToNRGBA(img), format, nil
}

// Load reads an image file from disk. Supports PNG, JPEG, WEBP, BMP and TIFF.
// The path is normalized: ~ is expanded to the user's home directory,
// and relative paths are resolved to absolute.
func Load(path string) (*image.NRGBA, error) {
	path = ExpandPath(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// ReadBlob reads a file verbatim and reports its decoder format without
// keeping the decoded pixels.
func ReadBlob(path string) ([]byte, string, error) {
	path = ExpandPath(path)
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	return blob, format, nil
}

// SavePNG writes an image to disk as PNG.
// The path is normalized: ~ is expanded and relative paths are resolved.
func SavePNG(path string, img image.Image) error {
	path = ExpandPath(path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := EncodePNG(f, img); err != nil {
		return err
	}
	return nil
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// ToNRGBA returns img as an *image.NRGBA whose bounds start at (0,0).
// An NRGBA input that already starts at the origin is copied, never aliased.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Clone returns a deep copy of img.
func Clone(img *image.NRGBA) *image.NRGBA {
	if img == nil {
		return nil
	}
	out := &image.NRGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

// Equal reports whether a and b have identical bounds and pixels.
func Equal(a, b *image.NRGBA) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Rect != b.Rect {
		return false
	}
	if a.Stride == b.Stride {
		return bytes.Equal(a.Pix, b.Pix)
	}
	rowLen := a.Rect.Dx() * 4
	for y := a.Rect.Min.Y; y < a.Rect.Max.Y; y++ {
		ra := a.Pix[a.PixOffset(a.Rect.Min.X, y):][:rowLen]
		rb := b.Pix[b.PixOffset(b.Rect.Min.X, y):][:rowLen]
		if !bytes.Equal(ra, rb) {
			return false
		}
	}
	return true
}

// ExpandPath normalizes a file path by expanding ~ to the user's home
// directory and resolving relative paths to absolute.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~ and ~/ to home directory
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// On Windows, also handle ~\
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "~\\") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Resolve relative paths to absolute
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return filepath.Clean(path)
}
