// Package renderer draws export images: the painted outline with numbered
// note markers and a color legend, and a printable PDF sheet.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/maax3v3/vorocal/internal/aggregation"
	vcolor "github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/store"
)

// unsetNoteColor is used for notes saved without a color.
var unsetNoteColor = vcolor.RGBA{R: 0x9C, G: 0xA3, B: 0xAF, A: 255}

// Config holds annotation layout settings.
type Config struct {
	MarkerRadius  int // radius of a note marker
	LegendPadding int // vertical padding above and below the legend
	LegendSwatch  int // side of a legend color swatch
	LegendSpacing int // gap between legend items
	LegendMargin  int // left/right margin of the legend area
}

// DefaultConfig returns the default layout.
func DefaultConfig() Config {
	return Config{
		MarkerRadius:  8,
		LegendPadding: 12,
		LegendSwatch:  18,
		LegendSpacing: 14,
		LegendMargin:  12,
	}
}

// Annotator draws note markers and the legend.
type Annotator struct {
	Numbers FontRenderer
	Labels  FontRenderer
	Config  Config
}

// NewAnnotator returns an Annotator with the bitmap and basicfont faces.
func NewAnnotator(cfg Config) *Annotator {
	return &Annotator{Numbers: NewBitmapFont(), Labels: NewLabelFont(), Config: cfg}
}

// Annotate returns a copy of src with a numbered marker on every note (in
// the order given) and, when legend is not empty, a legend strip appended
// below the drawing.
func (a *Annotator) Annotate(src *image.NRGBA, notes []store.Note, legend []aggregation.ColorEntry) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	legendH := a.legendHeight(legend, w)

	out := image.NewRGBA(image.Rect(0, 0, w, h+legendH))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, w, h), src, b.Min, draw.Src)

	for i, n := range notes {
		a.drawMarker(out, i+1, n)
	}
	a.drawLegend(out, legend, w, h)
	return out
}

func noteColor(n store.Note) vcolor.RGBA {
	if c, err := vcolor.ParseHex(n.Color); err == nil {
		return c
	}
	return unsetNoteColor
}

func textColor(bg vcolor.RGBA) color.Color {
	if bg.IsLight() {
		return color.Black
	}
	return color.White
}

func (a *Annotator) drawMarker(img *image.RGBA, number int, n store.Note) {
	r := a.Config.MarkerRadius
	c := noteColor(n)
	drawFilledCircle(img, n.X, n.Y, r, c.ToStdColor())
	drawCircleBorder(img, n.X, n.Y, r, color.RGBA{40, 40, 40, 255})

	label := fmt.Sprintf("%d", number)
	if number > 99 {
		label = "99+"
	}
	a.Numbers.DrawString(img, label, n.X, n.Y, textColor(c), r)
}

func legendText(e aggregation.ColorEntry) string {
	return fmt.Sprintf("%s x%d", e.Label(), e.Fills)
}

func (a *Annotator) itemWidth(legend []aggregation.ColorEntry) int {
	widest := 0
	for _, e := range legend {
		if tw, _ := a.Labels.MeasureString(legendText(e), 0); tw > widest {
			widest = tw
		}
	}
	return a.Config.LegendSwatch + 6 + widest + a.Config.LegendSpacing
}

func (a *Annotator) perRow(legend []aggregation.ColorEntry, imgW int) int {
	n := (imgW - 2*a.Config.LegendMargin) / a.itemWidth(legend)
	if n < 1 {
		n = 1
	}
	return n
}

func (a *Annotator) rowHeight() int {
	_, th := a.Labels.MeasureString("0", 0)
	if th > a.Config.LegendSwatch {
		return th + a.Config.LegendSpacing/2
	}
	return a.Config.LegendSwatch + a.Config.LegendSpacing/2
}

func (a *Annotator) legendHeight(legend []aggregation.ColorEntry, imgW int) int {
	if len(legend) == 0 {
		return 0
	}
	per := a.perRow(legend, imgW)
	rows := (len(legend) + per - 1) / per
	return 2*a.Config.LegendPadding + rows*a.rowHeight()
}

func (a *Annotator) drawLegend(img *image.RGBA, legend []aggregation.ColorEntry, imgW, drawingH int) {
	if len(legend) == 0 {
		return
	}
	cfg := a.Config
	sepY := drawingH + cfg.LegendPadding/2
	for x := cfg.LegendMargin; x < imgW-cfg.LegendMargin; x++ {
		img.SetRGBA(x, sepY, color.RGBA{200, 200, 200, 255})
	}

	per := a.perRow(legend, imgW)
	itemW := a.itemWidth(legend)
	rowH := a.rowHeight()
	for i, e := range legend {
		row, col := i/per, i%per
		x := cfg.LegendMargin + col*itemW
		y := drawingH + cfg.LegendPadding + row*rowH
		sw := image.Rect(x, y, x+cfg.LegendSwatch, y+cfg.LegendSwatch)
		draw.Draw(img, sw, image.NewUniform(e.Color.ToStdColor()), image.Point{}, draw.Src)
		drawRectBorder(img, sw, color.RGBA{100, 100, 100, 255})
		a.Numbers.DrawString(img, fmt.Sprintf("%d", e.Number), x+cfg.LegendSwatch/2, y+cfg.LegendSwatch/2, textColor(e.Color), glyphHeight)

		text := legendText(e)
		tw, _ := a.Labels.MeasureString(text, 0)
		a.Labels.DrawString(img, text, x+cfg.LegendSwatch+6+tw/2, y+cfg.LegendSwatch/2, color.Black, 0)
	}
}

func drawFilledCircle(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	b := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if p := image.Pt(cx+dx, cy+dy); p.In(b) {
				img.SetRGBA(p.X, p.Y, col)
			}
		}
	}
}

func drawCircleBorder(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	b := img.Bounds()
	for angle := 0.0; angle < 2*math.Pi; angle += 0.01 {
		p := image.Pt(
			cx+int(math.Round(float64(radius)*math.Cos(angle))),
			cy+int(math.Round(float64(radius)*math.Sin(angle))),
		)
		if p.In(b) {
			img.SetRGBA(p.X, p.Y, col)
		}
	}
}

func drawRectBorder(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, col)
		img.SetRGBA(x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, col)
		img.SetRGBA(r.Max.X-1, y, col)
	}
}
