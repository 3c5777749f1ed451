// Package oplog records fill operations and replays them onto an original
// image to reconstruct the painted state.
package oplog

import (
	"fmt"
	"image"
	"sort"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/fill"
	"github.com/maax3v3/vorocal/internal/imaging"
)

// TypeFill is the only operation type.
const TypeFill = "fill"

// Operation is one completed flood fill: the seed pixel and the requested
// color. Timestamp is in Unix milliseconds.
type Operation struct {
	Type      string `json:"type"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
}

// Validate checks the operation type and color.
func (op Operation) Validate() error {
	if op.Type != TypeFill {
		return fmt.Errorf("unsupported operation type %q", op.Type)
	}
	if _, err := color.ParseHex(op.Color); err != nil {
		return err
	}
	return nil
}

// Log is an ordered sequence of fill operations for one image.
type Log struct {
	ops []Operation
}

// New returns a log holding a copy of ops, sorted by timestamp.
func New(ops []Operation) *Log {
	l := &Log{}
	l.Replace(ops)
	return l
}

// Append adds op to the end of the log.
func (l *Log) Append(op Operation) {
	l.ops = append(l.ops, op)
}

// Replace discards the log's contents and takes a sorted copy of ops.
func (l *Log) Replace(ops []Operation) {
	l.ops = Sorted(ops)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.ops = nil
}

// Len returns the number of operations.
func (l *Log) Len() int {
	return len(l.ops)
}

// Last returns the most recent operation, if any.
func (l *Log) Last() (Operation, bool) {
	if len(l.ops) == 0 {
		return Operation{}, false
	}
	return l.ops[len(l.ops)-1], true
}

// Ops returns a copy of the operations in order.
func (l *Log) Ops() []Operation {
	return Clone(l.ops)
}

// Clone returns a copy of ops.
func Clone(ops []Operation) []Operation {
	if ops == nil {
		return nil
	}
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}

// Sorted returns a copy of ops in ascending timestamp order. Operations with
// equal timestamps keep their relative order.
func Sorted(ops []Operation) []Operation {
	out := Clone(ops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Apply performs one operation on img in place.
func Apply(img *image.NRGBA, op Operation, cls detection.Classifier) (fill.Result, error) {
	if err := op.Validate(); err != nil {
		return fill.Result{}, err
	}
	c, _ := color.ParseHex(op.Color)
	return fill.Fill(img, image.Pt(op.X, op.Y), c, cls), nil
}

// Replay starts from a copy of original and applies ops in ascending
// timestamp order. The original buffer is never modified. Operations that
// fail validation are skipped; their number is returned.
func Replay(original *image.NRGBA, ops []Operation, cls detection.Classifier) (*image.NRGBA, int) {
	img := imaging.Clone(original)
	invalid := 0
	for _, op := range Sorted(ops) {
		if _, err := Apply(img, op, cls); err != nil {
			invalid++
		}
	}
	return img, invalid
}
