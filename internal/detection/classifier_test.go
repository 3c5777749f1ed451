package detection

import (
	"image"
	"image/color"
	"testing"

	mcol "github.com/maax3v3/vorocal/internal/color"
)

// solidImage is a minimal image.Image for testing.
type solidImage struct {
	w, h int
	data []color.RGBA
}

func (s *solidImage) ColorModel() color.Model { return color.RGBAModel }
func (s *solidImage) Bounds() image.Rectangle { return image.Rect(0, 0, s.w, s.h) }
func (s *solidImage) At(x, y int) color.Color { return s.data[y*s.w+x] }

func newSolidImage(w, h int, fill color.RGBA) *solidImage {
	data := make([]color.RGBA, w*h)
	for i := range data {
		data[i] = fill
	}
	return &solidImage{w: w, h: h, data: data}
}

func TestIsBoundary(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		name    string
		r, g, b uint8
		want    bool
	}{
		{"black", 0, 0, 0, true},
		{"white", 255, 255, 255, false},
		{"average exactly 60", 60, 60, 60, false},
		{"average just below 60", 60, 60, 59, true},
		{"dark red", 150, 10, 10, true},
		{"saturated red", 255, 0, 0, false},
		{"anti-aliased gray", 90, 90, 90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsBoundary(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("IsBoundary(%d,%d,%d) = %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsSimilar(t *testing.T) {
	c := DefaultClassifier()
	white := mcol.RGBA{R: 255, G: 255, B: 255, A: 255}
	tests := []struct {
		name  string
		other mcol.RGBA
		want  bool
	}{
		{"identical", white, true},
		{"within tolerance on every channel", mcol.RGBA{R: 215, G: 215, B: 215, A: 255}, true},
		{"one channel just outside", mcol.RGBA{R: 214, G: 255, B: 255, A: 255}, false},
		{"alpha ignored", mcol.RGBA{R: 255, G: 255, B: 255, A: 0}, true},
		{"far away", mcol.RGBA{R: 0, G: 0, B: 0, A: 255}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsSimilar(white, tt.other); got != tt.want {
				t.Errorf("IsSimilar(white, %+v) = %v, want %v", tt.other, got, tt.want)
			}
			if got := c.IsSimilar(tt.other, white); got != tt.want {
				t.Errorf("IsSimilar is not symmetric for %+v", tt.other)
			}
		})
	}
}

func TestIsSimilar_ZeroTolerance(t *testing.T) {
	c := Classifier{BoundaryThreshold: 60, Tolerance: 0}
	if !c.IsSimilar(mcol.RGBA{R: 1, G: 2, B: 3, A: 255}, mcol.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Error("identical colors must be similar at zero tolerance")
	}
	if c.IsSimilar(mcol.RGBA{R: 1, G: 2, B: 3, A: 255}, mcol.RGBA{R: 1, G: 2, B: 4, A: 255}) {
		t.Error("distinct colors must not be similar at zero tolerance")
	}
}

func TestDetect_AllBoundary(t *testing.T) {
	img := newSolidImage(10, 10, color.RGBA{0, 0, 0, 255})
	dm := DefaultClassifier().Detect(img)

	if dm.Width != 10 || dm.Height != 10 {
		t.Fatalf("dimensions: got %dx%d, want 10x10", dm.Width, dm.Height)
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if !dm.At(x, y) {
				t.Errorf("pixel (%d,%d) should be boundary", x, y)
			}
		}
	}
	if dm.Coverage() != 1 {
		t.Errorf("coverage: got %f, want 1", dm.Coverage())
	}
}

func TestDetect_NoBoundary(t *testing.T) {
	img := newSolidImage(10, 10, color.RGBA{255, 255, 255, 255})
	dm := DefaultClassifier().Detect(img)

	if n := dm.Count(); n != 0 {
		t.Errorf("expected no boundary pixels, got %d", n)
	}
}

func TestDetect_MixedWithCross(t *testing.T) {
	w, h := 10, 10
	img := newSolidImage(w, h, color.RGBA{255, 0, 0, 255})
	// Draw a black cross at row 5 and col 5
	for x := 0; x < w; x++ {
		img.data[5*w+x] = color.RGBA{0, 0, 0, 255}
	}
	for y := 0; y < h; y++ {
		img.data[y*w+5] = color.RGBA{0, 0, 0, 255}
	}

	dm := DefaultClassifier().Detect(img)

	for x := 0; x < w; x++ {
		if !dm.At(x, 5) {
			t.Errorf("(%d,5) should be boundary", x)
		}
	}
	for y := 0; y < h; y++ {
		if !dm.At(5, y) {
			t.Errorf("(5,%d) should be boundary", y)
		}
	}
	if dm.At(0, 0) {
		t.Error("(0,0) should not be boundary")
	}
	if dm.At(9, 9) {
		t.Error("(9,9) should not be boundary")
	}
	if got := dm.Count(); got != 19 {
		t.Errorf("count: got %d, want 19", got)
	}
}

func TestDetect_NRGBAMatchesGeneric(t *testing.T) {
	w, h := 17, 13
	generic := newSolidImage(w, h, color.RGBA{255, 255, 255, 255})
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{uint8(x * 15), uint8(y * 19), uint8((x + y) * 7), 255}
			generic.data[y*w+x] = c
			nrgba.Set(x, y, c)
		}
	}

	cls := DefaultClassifier()
	a := cls.Detect(generic)
	b := cls.Detect(nrgba)
	for i := range a.IsBoundary {
		if a.IsBoundary[i] != b.IsBoundary[i] {
			t.Fatalf("pixel %d: generic=%v nrgba=%v", i, a.IsBoundary[i], b.IsBoundary[i])
		}
	}
}

func TestDetect_SubImageOffset(t *testing.T) {
	full := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := range full.Pix {
		full.Pix[i] = 255
	}
	full.Set(3, 3, color.NRGBA{0, 0, 0, 255})
	sub := full.SubImage(image.Rect(2, 2, 6, 6)).(*image.NRGBA)

	dm := DefaultClassifier().Detect(sub)
	if dm.Width != 4 || dm.Height != 4 {
		t.Fatalf("dimensions: got %dx%d, want 4x4", dm.Width, dm.Height)
	}
	if !dm.At(1, 1) {
		t.Error("boundary pixel at sub-image (1,1) not detected")
	}
	if dm.Count() != 1 {
		t.Errorf("count: got %d, want 1", dm.Count())
	}
}

func TestCoverage_EmptyMap(t *testing.T) {
	dm := &Map{}
	if dm.Coverage() != 0 {
		t.Errorf("coverage of empty map: got %f", dm.Coverage())
	}
}
