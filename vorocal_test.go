package vorocal

import (
	"image"
	stdcolor "image/color"
	"os"
	"path/filepath"
	"testing"
)

func frame() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := stdcolor.NRGBA{255, 255, 255, 255}
			if x == 0 || y == 0 || x == 9 || y == 9 || x == 5 {
				c = stdcolor.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

const twoFills = `{
  "version": 1,
  "exportedAt": "2024-01-31T10:00:00Z",
  "imageId": "1706695200000",
  "operations": [
    {"type": "fill", "x": 7, "y": 7, "color": "#00FF00", "timestamp": 2},
    {"type": "fill", "x": 2, "y": 2, "color": "#FF0000", "timestamp": 1},
    {"type": "fill", "x": 9, "y": 9, "color": "#0000FF", "timestamp": 3}
  ],
  "notes": []
}`

func TestReplay(t *testing.T) {
	src := frame()
	out, err := Replay(src, []byte(twoFills), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(2, 2); got != (stdcolor.NRGBA{255, 0, 0, 255}) {
		t.Errorf("left region = %v", got)
	}
	if got := out.NRGBAAt(7, 7); got != (stdcolor.NRGBA{0, 255, 0, 255}) {
		t.Errorf("right region = %v", got)
	}
	if got := out.NRGBAAt(9, 9); got != (stdcolor.NRGBA{0, 0, 0, 255}) {
		t.Errorf("outline pixel painted: %v", got)
	}
	if got := src.NRGBAAt(2, 2); got != (stdcolor.NRGBA{255, 255, 255, 255}) {
		t.Errorf("input modified: %v", got)
	}
}

func TestReplay_Errors(t *testing.T) {
	if _, err := Replay(nil, []byte(twoFills), DefaultOptions()); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := Replay(frame(), []byte(`{"operations":[]}`), DefaultOptions()); err == nil {
		t.Error("expected error for missing version")
	}
}

func TestReplayFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	bak := filepath.Join(dir, "backup.json")
	if err := SavePNG(in, frame()); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(bak, twoFills); err != nil {
		t.Fatal(err)
	}
	if err := ReplayFile(in, bak, out, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	img, err := LoadImage(out)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(2, 2).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("pixel (2,2) = %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff0000", Color{255, 0, 0, 255}, false},
		{"#F00", Color{}, true},
		{"00ff00", Color{0, 255, 0, 255}, false},
		{"#12345", Color{}, true},
		{"nope", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writeFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}
