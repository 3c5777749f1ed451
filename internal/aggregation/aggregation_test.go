package aggregation

import (
	"image"
	stdcolor "image/color"
	"testing"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/oplog"
)

func fillOp(hex string, ts int64) oplog.Operation {
	return oplog.Operation{Type: oplog.TypeFill, X: 1, Y: 1, Color: hex, Timestamp: ts}
}

func TestLegend_Empty(t *testing.T) {
	if got := Legend(nil, color.Moods); len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestLegend_GroupsByColor(t *testing.T) {
	ops := []oplog.Operation{
		fillOp("#EF4444", 3),
		fillOp("#facc15", 1),
		fillOp("#123456", 4),
		fillOp("#FACC15", 2),
		fillOp("bogus", 5),
	}
	got := Legend(ops, color.Moods)

	want := []struct {
		number int
		hex    string
		label  string
		fills  int
	}{
		{1, "#FACC15", "Happy", 2},
		{2, "#EF4444", "Angry", 1},
		{3, "#123456", "#123456", 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, w := range want {
		e := got[i]
		if e.Number != w.number || e.Hex != w.hex || e.Label() != w.label || e.Fills != w.fills {
			t.Errorf("entry %d = {%d %s %s %d}, want {%d %s %s %d}",
				i, e.Number, e.Hex, e.Label(), e.Fills, w.number, w.hex, w.label, w.fills)
		}
	}
}

func TestCountPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
	red := stdcolor.NRGBA{255, 0, 0, 255}
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			if x < 3 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, stdcolor.NRGBA{255, 255, 255, 255})
			}
		}
	}
	entries := Legend([]oplog.Operation{fillOp("#FF0000", 1), fillOp("#00FF00", 2)}, color.Moods)
	CountPixels(img, entries)

	if entries[0].Pixels != 15 {
		t.Errorf("red pixels = %d, want 15", entries[0].Pixels)
	}
	if entries[1].Pixels != 0 {
		t.Errorf("green pixels = %d, want 0", entries[1].Pixels)
	}

	// sub-images count only their own rectangle
	sub := img.SubImage(image.Rect(1, 1, 4, 3)).(*image.NRGBA)
	CountPixels(sub, entries)
	if entries[0].Pixels != 4 {
		t.Errorf("red pixels in sub-image = %d, want 4", entries[0].Pixels)
	}
}

func TestCountPixels_NoEntries(t *testing.T) {
	CountPixels(image.NewNRGBA(image.Rect(0, 0, 2, 2)), nil)
}
