package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/maax3v3/vorocal/internal/backup"
	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/notes"
)

// Intent is a user action executed by Session.Dispatch.
type Intent interface {
	run(ctx context.Context, s *Session) (Outcome, error)
}

// Outcome carries whatever an intent produced plus the resulting status.
type Outcome struct {
	Status Status
	// Changed is false for intents that turned out to be no-ops.
	Changed bool
	Fill    *FillResult
	Import  *ImportResult
	Backup  *backup.Document
	Note    *notes.Note
}

// kept reports whether err happened after the in-memory state changed, in
// which case the change stays.
func kept(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// Fill floods the region under (X, Y) with Color.
type Fill struct {
	X, Y  float64
	Color string
}

func (f Fill) run(ctx context.Context, s *Session) (Outcome, error) {
	res, err := s.fill(ctx, f.X, f.Y, f.Color)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Changed: res.Operation != nil, Fill: &res}, nil
}

// Undo steps back one fill.
type Undo struct{}

func (Undo) run(ctx context.Context, s *Session) (Outcome, error) {
	ok, err := s.undo(ctx)
	return Outcome{Changed: ok}, err
}

// Redo steps forward one fill.
type Redo struct{}

func (Redo) run(ctx context.Context, s *Session) (Outcome, error) {
	ok, err := s.redo(ctx)
	return Outcome{Changed: ok}, err
}

// Reset discards every fill. Confirm must be set.
type Reset struct {
	Confirm bool
}

func (r Reset) run(ctx context.Context, s *Session) (Outcome, error) {
	err := s.reset(ctx, r.Confirm)
	return Outcome{Changed: err == nil || kept(err)}, err
}

// Import applies a JSON backup.
type Import struct {
	Data []byte
}

func (i Import) run(ctx context.Context, s *Session) (Outcome, error) {
	res, err := s.importBackup(ctx, i.Data)
	if err != nil && !kept(err) {
		return Outcome{}, err
	}
	return Outcome{Changed: true, Import: &res}, err
}

// Export produces a backup document.
type Export struct{}

func (Export) run(_ context.Context, s *Session) (Outcome, error) {
	doc, err := s.export()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Backup: &doc}, nil
}

// AddNote anchors a note. An empty Color uses the selected brush.
type AddNote struct {
	X, Y  float64
	Text  string
	Color string
}

func (a AddNote) run(ctx context.Context, s *Session) (Outcome, error) {
	n, err := s.addNote(ctx, a.X, a.Y, a.Text, a.Color)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Changed: true, Note: &n}, nil
}

// DeleteNote removes the note with ID.
type DeleteNote struct {
	ID string
}

func (d DeleteNote) run(ctx context.Context, s *Session) (Outcome, error) {
	err := s.deleteNote(ctx, d.ID)
	return Outcome{Changed: err == nil}, err
}

// LoadImage replaces the active image with an encoded image blob.
type LoadImage struct {
	Blob []byte
}

func (l LoadImage) run(ctx context.Context, s *Session) (Outcome, error) {
	err := s.loadImage(ctx, l.Blob)
	return Outcome{Changed: err == nil || kept(err)}, err
}

// SelectColor changes the brush used for notes without an explicit color.
type SelectColor struct {
	Color string
}

func (c SelectColor) run(_ context.Context, s *Session) (Outcome, error) {
	norm, err := color.NormalizeHex(c.Color)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	s.brush = norm
	return Outcome{Changed: true}, nil
}
