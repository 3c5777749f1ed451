// Package backup reads and writes the JSON backup of an image's operation
// log and notes.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

// Version is the only backup format version written and accepted.
const Version = 1

// ErrInvalid is wrapped by every Decode failure.
var ErrInvalid = errors.New("invalid backup")

// Document is the backup file layout.
type Document struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	ImageID    string            `json:"imageId"`
	Operations []oplog.Operation `json:"operations"`
	Notes      []store.Note      `json:"notes"`
}

// New builds a Document for imageID stamped with now.
func New(imageID string, ops []oplog.Operation, notes []store.Note, now time.Time) Document {
	if ops == nil {
		ops = []oplog.Operation{}
	}
	if notes == nil {
		notes = []store.Note{}
	}
	return Document{
		Version:    Version,
		ExportedAt: now.UTC().Truncate(time.Millisecond),
		ImageID:    imageID,
		Operations: ops,
		Notes:      notes,
	}
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	return nil
}

// Marshal returns doc as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// raw mirrors Document with pointers so missing fields can be told apart
// from zero values.
type raw struct {
	Version    *int               `json:"version"`
	ExportedAt *time.Time         `json:"exportedAt"`
	ImageID    string             `json:"imageId"`
	Operations *[]oplog.Operation `json:"operations"`
	Notes      []store.Note       `json:"notes"`
}

// Decode parses and validates a backup. Operation colors are normalised to
// "#RRGGBB".
func Decode(r io.Reader) (*Document, error) {
	var in raw
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if in.Version == nil {
		return nil, fmt.Errorf("%w: missing version", ErrInvalid)
	}
	if *in.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalid, *in.Version)
	}
	if in.Operations == nil {
		return nil, fmt.Errorf("%w: missing operations", ErrInvalid)
	}

	ops := make([]oplog.Operation, len(*in.Operations))
	for i, op := range *in.Operations {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("%w: operation %d: %w", ErrInvalid, i, err)
		}
		op.Color, _ = color.NormalizeHex(op.Color)
		ops[i] = op
	}

	doc := &Document{
		Version:    *in.Version,
		ImageID:    in.ImageID,
		Operations: ops,
		Notes:      in.Notes,
	}
	if in.ExportedAt != nil {
		doc.ExportedAt = *in.ExportedAt
	}
	return doc, nil
}

// Parse is Decode over a byte slice.
func Parse(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// FileName returns the suggested backup file name for t.
func FileName(t time.Time) string {
	return "vorocal-backup-" + t.Format("2006-01-02") + ".json"
}

// ImageFileName returns the suggested PNG export file name for t.
func ImageFileName(t time.Time) string {
	return "vorocal-" + t.Format("2006-01-02") + ".png"
}

// PDFFileName returns the suggested PDF export file name for t.
func PDFFileName(t time.Time) string {
	return "vorocal-" + t.Format("2006-01-02") + ".pdf"
}
