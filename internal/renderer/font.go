package renderer

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontRenderer draws short strings onto images.
type FontRenderer interface {
	// DrawString draws text centered at (cx, cy) with the given color and
	// approximate height in pixels.
	DrawString(dst draw.Image, text string, cx, cy int, col color.Color, size int)

	// MeasureString returns the width and height text would occupy.
	MeasureString(text string, size int) (width, height int)
}

// BitmapFont draws digits from 5x7 glyphs scaled by whole pixels. It is used
// for note marker numbers, which must stay legible at any size.
type BitmapFont struct{}

// NewBitmapFont creates a new BitmapFont.
func NewBitmapFont() *BitmapFont {
	return &BitmapFont{}
}

var glyphs = map[rune][7]uint8{
	'0': {0x0E, 0x11, 0x13, 0x15, 0x19, 0x11, 0x0E},
	'1': {0x04, 0x0C, 0x04, 0x04, 0x04, 0x04, 0x0E},
	'2': {0x0E, 0x11, 0x01, 0x06, 0x08, 0x10, 0x1F},
	'3': {0x0E, 0x11, 0x01, 0x06, 0x01, 0x11, 0x0E},
	'4': {0x02, 0x06, 0x0A, 0x12, 0x1F, 0x02, 0x02},
	'5': {0x1F, 0x10, 0x1E, 0x01, 0x01, 0x11, 0x0E},
	'6': {0x06, 0x08, 0x10, 0x1E, 0x11, 0x11, 0x0E},
	'7': {0x1F, 0x01, 0x02, 0x04, 0x08, 0x08, 0x08},
	'8': {0x0E, 0x11, 0x11, 0x0E, 0x11, 0x11, 0x0E},
	'9': {0x0E, 0x11, 0x11, 0x0F, 0x01, 0x02, 0x0C},
	'+': {0x00, 0x04, 0x04, 0x1F, 0x04, 0x04, 0x00},
}

const (
	glyphWidth  = 5
	glyphHeight = 7
)

func glyphScale(size int) int {
	if s := size / glyphHeight; s > 1 {
		return s
	}
	return 1
}

func (bf *BitmapFont) DrawString(dst draw.Image, text string, cx, cy int, col color.Color, size int) {
	scale := glyphScale(size)
	totalW, totalH := bf.MeasureString(text, size)
	b := dst.Bounds()
	x0 := b.Min.X + cx - totalW/2
	y0 := b.Min.Y + cy - totalH/2
	src := image.NewUniform(col)

	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if ok {
			for row := 0; row < glyphHeight; row++ {
				for bit := 0; bit < glyphWidth; bit++ {
					if glyph[row]&(1<<(glyphWidth-1-bit)) == 0 {
						continue
					}
					px := x0 + bit*scale
					py := y0 + row*scale
					r := image.Rect(px, py, px+scale, py+scale).Intersect(b)
					draw.Draw(dst, r, src, image.Point{}, draw.Over)
				}
			}
		}
		x0 += (glyphWidth + 1) * scale
	}
}

func (bf *BitmapFont) MeasureString(text string, size int) (width, height int) {
	scale := glyphScale(size)
	n := len([]rune(text))
	if n == 0 {
		return 0, 0
	}
	return n*(glyphWidth*scale) + (n-1)*scale, glyphHeight * scale
}

// LabelFont draws text with the fixed 7x13 basicfont face. size is ignored.
type LabelFont struct {
	face font.Face
}

// NewLabelFont creates a LabelFont.
func NewLabelFont() *LabelFont {
	return &LabelFont{face: basicfont.Face7x13}
}

func (lf *LabelFont) DrawString(dst draw.Image, text string, cx, cy int, col color.Color, _ int) {
	w, h := lf.MeasureString(text, 0)
	b := dst.Bounds()
	ascent := lf.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: lf.face,
		Dot:  fixed.P(b.Min.X+cx-w/2, b.Min.Y+cy-h/2+ascent),
	}
	d.DrawString(text)
}

func (lf *LabelFont) MeasureString(text string, _ int) (width, height int) {
	if text == "" {
		return 0, 0
	}
	d := &font.Drawer{Face: lf.face}
	m := lf.face.Metrics()
	return d.MeasureString(text).Ceil(), (m.Ascent + m.Descent).Ceil()
}
