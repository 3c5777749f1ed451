package fill

import (
	"image"
	"math"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/detection"
)

// Skip explains why a fill did not change the buffer.
type Skip int

const (
	// None means the fill proceeds.
	None Skip = iota
	// OutOfBounds means the seed lies outside the buffer.
	OutOfBounds
	// OnBoundary means the seed pixel is a boundary line.
	OnBoundary
	// SameColor means the seed pixel already has the fill color.
	SameColor
)

func (s Skip) String() string {
	switch s {
	case None:
		return "none"
	case OutOfBounds:
		return "out of bounds"
	case OnBoundary:
		return "seed on boundary"
	case SameColor:
		return "already filled with this color"
	default:
		return "unknown"
	}
}

// Result describes a completed fill.
type Result struct {
	Seed   image.Point
	Start  color.RGBA // seed color before the fill
	Filled int        // number of repainted pixels
	Skip   Skip
}

// Changed reports whether the fill repainted anything.
func (r Result) Changed() bool {
	return r.Skip == None && r.Filled > 0
}

// dirs are the 4-connected neighbor offsets.
var dirs = [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Seed converts (possibly fractional) pointer coordinates to a pixel by
// flooring both components.
func Seed(x, y float64) image.Point {
	return image.Point{X: int(math.Floor(x)), Y: int(math.Floor(y))}
}

// Check reports whether filling img from seed with c would be a no-op, and
// why. It never mutates img.
func Check(img *image.NRGBA, seed image.Point, c color.RGBA, cls detection.Classifier) Skip {
	if !seed.In(img.Rect) {
		return OutOfBounds
	}
	start := at(img, seed)
	if cls.IsBoundary(start.R, start.G, start.B) {
		return OnBoundary
	}
	if start.SameRGB(c) {
		return SameColor
	}
	return None
}

// Fill repaints the 4-connected region around seed with c (alpha forced to
// 255). A pixel joins the region iff it is not a boundary and is similar to
// the seed's original color. Boundary pixels are never repainted.
func Fill(img *image.NRGBA, seed image.Point, c color.RGBA, cls detection.Classifier) Result {
	res := Result{Seed: seed}
	if res.Skip = Check(img, seed, c, cls); res.Skip != None {
		return res
	}
	res.Start = at(img, seed)

	r := img.Rect
	w, h := r.Dx(), r.Dy()
	visited := make([]bool, w*h)
	q := newQueue(64)

	include := func(x, y int) bool {
		i := img.PixOffset(x, y)
		p := img.Pix[i : i+3 : i+3]
		if cls.IsBoundary(p[0], p[1], p[2]) {
			return false
		}
		return cls.IsSimilar(color.RGBA{R: p[0], G: p[1], B: p[2]}, res.Start)
	}

	visited[(seed.Y-r.Min.Y)*w+(seed.X-r.Min.X)] = true
	q.push(seed)

	for q.size() > 0 {
		p := q.pop()
		i := img.PixOffset(p.X, p.Y)
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 255
		res.Filled++

		for _, d := range dirs {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < r.Min.X || nx >= r.Max.X || ny < r.Min.Y || ny >= r.Max.Y {
				continue
			}
			vi := (ny-r.Min.Y)*w + (nx - r.Min.X)
			if visited[vi] || !include(nx, ny) {
				continue
			}
			visited[vi] = true
			q.push(image.Point{X: nx, Y: ny})
		}
	}

	return res
}

func at(img *image.NRGBA, p image.Point) color.RGBA {
	i := img.PixOffset(p.X, p.Y)
	return color.RGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
}
