package detection

import (
	"image"
	"sync"

	"github.com/maax3v3/vorocal/internal/color"
)

// Default classification parameters.
const (
	DefaultBoundaryThreshold = 60
	DefaultTolerance         = 40
)

// Classifier decides which pixels are drawn boundary lines and which colors
// belong to the same region.
type Classifier struct {
	// BoundaryThreshold is the average luminance below which a pixel is a
	// boundary line.
	BoundaryThreshold int
	// Tolerance is the maximum per-channel difference for two colors to be
	// considered the same region (anti-aliased edges).
	Tolerance int
}

// DefaultClassifier returns a Classifier with the default threshold and
// tolerance.
func DefaultClassifier() Classifier {
	return Classifier{
		BoundaryThreshold: DefaultBoundaryThreshold,
		Tolerance:         DefaultTolerance,
	}
}

// IsBoundary reports whether (r+g+b)/3 is below the boundary threshold.
// The average is not truncated, so 59.67 counts as below 60.
func (c Classifier) IsBoundary(r, g, b uint8) bool {
	return int(r)+int(g)+int(b) < 3*c.BoundaryThreshold
}

// IsSimilar reports whether every channel of a and b differs by at most the
// tolerance. Alpha is ignored.
func (c Classifier) IsSimilar(a, b color.RGBA) bool {
	return absDiff(a.R, b.R) <= c.Tolerance &&
		absDiff(a.G, b.G) <= c.Tolerance &&
		absDiff(a.B, b.B) <= c.Tolerance
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Map holds a boolean grid where true means the pixel is a boundary pixel.
type Map struct {
	Width, Height int
	IsBoundary    []bool // row-major: index = y*Width + x
}

// At returns whether the pixel at (x, y) is a boundary.
func (m *Map) At(x, y int) bool {
	return m.IsBoundary[y*m.Width+x]
}

// Count returns the number of boundary pixels.
func (m *Map) Count() int {
	count := 0
	for _, b := range m.IsBoundary {
		if b {
			count++
		}
	}
	return count
}

// Coverage returns the fraction of boundary pixels in [0, 1].
func (m *Map) Coverage() float64 {
	total := m.Width * m.Height
	if total == 0 {
		return 0
	}
	return float64(m.Count()) / float64(total)
}

// Detect classifies every pixel of img as boundary or fillable.
func (c Classifier) Detect(img image.Image) *Map {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	dm := &Map{
		Width:      w,
		Height:     h,
		IsBoundary: make([]bool, w*h),
	}

	if nrgba, ok := img.(*image.NRGBA); ok {
		parallelRows(h, func(sy, ey int) {
			for y := sy; y < ey; y++ {
				off := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				for x := 0; x < w; x++ {
					i := off + x*4
					p := nrgba.Pix[i : i+3 : i+3]
					dm.IsBoundary[y*w+x] = c.IsBoundary(p[0], p[1], p[2])
				}
			}
		})
		return dm
	}

	parallelRows(h, func(sy, ey int) {
		for y := sy; y < ey; y++ {
			for x := 0; x < w; x++ {
				px := color.FromStdColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
				dm.IsBoundary[y*w+x] = c.IsBoundary(px.R, px.G, px.B)
			}
		}
	})

	return dm
}

// parallelRows runs fn across row bands using multiple goroutines.
func parallelRows(h int, fn func(startY, endY int)) {
	numWorkers := 8
	rowsPerWorker := (h + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(sy, ey int) {
			defer wg.Done()
			fn(sy, ey)
		}(startY, endY)
	}
	wg.Wait()
}
