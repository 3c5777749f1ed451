package color

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned when a color string is not a 6-digit hex color.
var ErrInvalidColor = errors.New("invalid color")

// RGBA represents a color with 8-bit RGBA components.
type RGBA struct {
	R, G, B, A uint8
}

// FromStdColor converts a standard library color to RGBA.
func FromStdColor(c color.Color) RGBA {
	if n, ok := c.(color.NRGBA); ok {
		return RGBA{R: n.R, G: n.G, B: n.B, A: n.A}
	}
	r, g, b, a := c.RGBA()
	return RGBA{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
		A: uint8(a >> 8),
	}
}

// ToStdColor converts RGBA to a standard library color.
func (c RGBA) ToStdColor() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// ToNRGBA converts RGBA to a non-premultiplied standard library color.
func (c RGBA) ToNRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// SameRGB reports whether both colors have identical R, G and B channels.
// Alpha is ignored.
func (c RGBA) SameRGB(o RGBA) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B
}

// Hex formats the color as "#RRGGBB".
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseHex parses a hex color string like "#FF00FF" or "ff00ff".
// Exactly six hex digits are accepted; the leading '#' is optional.
func ParseHex(s string) (RGBA, error) {
	digits := strings.TrimPrefix(s, "#")
	if len(digits) != 6 {
		return RGBA{}, fmt.Errorf("%w %q: must be 6 hex digits", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("%w %q: %v", ErrInvalidColor, s, err)
	}
	return RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// NormalizeHex parses s and returns it in canonical "#RRGGBB" form.
func NormalizeHex(s string) (string, error) {
	c, err := ParseHex(s)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// IsLight returns true if the color is perceptually light (luminance > 0.5).
func (c RGBA) IsLight() bool {
	// Relative luminance formula
	rLin := srgbToLinear(float64(c.R) / 255.0)
	gLin := srgbToLinear(float64(c.G) / 255.0)
	bLin := srgbToLinear(float64(c.B) / 255.0)
	luminance := 0.2126*rLin + 0.7152*gLin + 0.0722*bLin
	return luminance > 0.5
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}
