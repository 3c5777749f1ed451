package oplog

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/imaging"
)

// quadrants returns a 9x9 white canvas divided into four chambers by a
// black cross at row 4 and column 4.
func quadrants() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			c := color.NRGBA{255, 255, 255, 255}
			if x == 4 || y == 4 {
				c = color.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestLog_AppendAndOps(t *testing.T) {
	l := New(nil)
	l.Append(Operation{Type: TypeFill, X: 1, Y: 1, Color: "#FF0000", Timestamp: 10})
	l.Append(Operation{Type: TypeFill, X: 6, Y: 6, Color: "#00FF00", Timestamp: 20})

	ops := l.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, 1, ops[0].X)

	ops[0].X = 99
	assert.Equal(t, 1, l.Ops()[0].X, "Ops must return a copy")

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, int64(20), last.Timestamp)
}

func TestLog_ReplaceSortsStable(t *testing.T) {
	l := New([]Operation{
		{Type: TypeFill, X: 3, Timestamp: 30},
		{Type: TypeFill, X: 1, Timestamp: 10},
		{Type: TypeFill, X: 2, Timestamp: 10},
	})
	ops := l.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{ops[0].X, ops[1].X, ops[2].X})

	l.Clear()
	assert.Equal(t, 0, l.Len())
	_, ok := l.Last()
	assert.False(t, ok)
}

func TestOperation_Validate(t *testing.T) {
	assert.NoError(t, Operation{Type: TypeFill, Color: "#abcdef"}.Validate())
	assert.Error(t, Operation{Type: "erase", Color: "#abcdef"}.Validate())
	assert.Error(t, Operation{Type: TypeFill, Color: "red"}.Validate())
}

func TestReplay_DoesNotTouchOriginal(t *testing.T) {
	orig := quadrants()
	snapshot := imaging.Clone(orig)

	out, invalid := Replay(orig, []Operation{
		{Type: TypeFill, X: 1, Y: 1, Color: "#FF0000", Timestamp: 1},
	}, detection.DefaultClassifier())

	assert.Zero(t, invalid)
	assert.True(t, imaging.Equal(orig, snapshot), "original mutated by replay")
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(8, 8))
}

func TestReplay_OrderMatters(t *testing.T) {
	// Filling the same chamber twice: the later color wins, so replay must
	// follow timestamps rather than slice order.
	ops := []Operation{
		{Type: TypeFill, X: 1, Y: 1, Color: "#0000FF", Timestamp: 200},
		{Type: TypeFill, X: 1, Y: 1, Color: "#FF0000", Timestamp: 100},
	}
	out, _ := Replay(quadrants(), ops, detection.DefaultClassifier())
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, out.NRGBAAt(2, 2))
}

func TestReplay_Idempotent(t *testing.T) {
	ops := []Operation{
		{Type: TypeFill, X: 1, Y: 1, Color: "#FF0000", Timestamp: 1},
		{Type: TypeFill, X: 6, Y: 1, Color: "#00FF00", Timestamp: 2},
		{Type: TypeFill, X: 1, Y: 6, Color: "#0000FF", Timestamp: 3},
	}
	orig := quadrants()
	a, _ := Replay(orig, ops, detection.DefaultClassifier())
	b, _ := Replay(orig, ops, detection.DefaultClassifier())
	assert.True(t, imaging.Equal(a, b))
}

func TestReplay_SkipsInvalid(t *testing.T) {
	ops := []Operation{
		{Type: TypeFill, X: 1, Y: 1, Color: "nope", Timestamp: 1},
		{Type: "stroke", X: 1, Y: 1, Color: "#FF0000", Timestamp: 2},
		{Type: TypeFill, X: 6, Y: 6, Color: "#00FF00", Timestamp: 3},
	}
	out, invalid := Replay(quadrants(), ops, detection.DefaultClassifier())
	assert.Equal(t, 2, invalid)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, out.NRGBAAt(6, 6))
}

func TestApply_RejectsInvalid(t *testing.T) {
	img := quadrants()
	_, err := Apply(img, Operation{Type: TypeFill, Color: "#12345"}, detection.DefaultClassifier())
	assert.Error(t, err)
	assert.True(t, imaging.Equal(img, quadrants()))
}
