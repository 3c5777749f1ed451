// Package notes manages the text annotations of the active image.
package notes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/store"
)

// DefaultRadius is the pick distance, in pixels, used to find a note under
// the pointer.
const DefaultRadius = 30

// ErrEmptyText is returned when a note has no text after trimming.
var ErrEmptyText = errors.New("note text is empty")

// Note is a stored annotation.
type Note = store.Note

// Manager mirrors the notes of one image in memory and writes every change
// through to the store.
type Manager struct {
	store   store.Store
	imageID string
	notes   []Note
}

// New returns a Manager with no image bound.
func New(s store.Store) *Manager {
	return &Manager{store: s}
}

// ImageID returns the image the manager is bound to.
func (m *Manager) ImageID() string { return m.imageID }

// Load binds the manager to imageID and reads its notes. On a read error the
// manager is bound with an empty list and the error is returned.
func (m *Manager) Load(ctx context.Context, imageID string) error {
	m.imageID = imageID
	m.notes = nil
	if imageID == "" {
		return nil
	}
	ns, err := m.store.NotesByImage(ctx, imageID)
	if err != nil {
		return err
	}
	m.notes = ns
	return nil
}

// Add validates and stores a new note on the bound image. text is trimmed;
// hex may be empty, in which case the note carries no color.
func (m *Manager) Add(ctx context.Context, x, y int, text, hex string, timestamp int64) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, ErrEmptyText
	}
	if hex != "" {
		norm, err := color.NormalizeHex(hex)
		if err != nil {
			return Note{}, err
		}
		hex = norm
	}
	n := Note{ImageID: m.imageID, X: x, Y: y, Text: text, Color: hex, Timestamp: timestamp}
	id, err := m.store.AppendNote(ctx, n)
	if err != nil {
		return Note{}, err
	}
	n.ID = id
	m.notes = append(m.notes, n)
	return n, nil
}

// Delete removes a note by id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether id is a note of the bound image.
func (m *Manager) Has(id string) bool {
	for _, n := range m.notes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Clear removes every note of the bound image.
func (m *Manager) Clear(ctx context.Context) error {
	m.notes = nil
	if m.imageID == "" {
		return nil
	}
	return m.store.ClearNotesByImage(ctx, m.imageID)
}

// Replace clears the bound image's notes and stores ns under fresh ids.
// Notes with empty text or an invalid color are skipped; their number is
// returned.
func (m *Manager) Replace(ctx context.Context, ns []Note) (int, error) {
	if err := m.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear notes: %w", err)
	}
	skipped := 0
	for _, n := range ns {
		_, err := m.Add(ctx, n.X, n.Y, n.Text, n.Color, n.Timestamp)
		switch {
		case err == nil:
		case errors.Is(err, ErrEmptyText), errors.Is(err, color.ErrInvalidColor):
			skipped++
		default:
			return skipped, err
		}
	}
	return skipped, nil
}

// List returns a copy of the notes in timestamp order.
func (m *Manager) List() []Note {
	out := make([]Note, len(m.notes))
	copy(out, m.notes)
	return out
}

// Len returns the number of notes.
func (m *Manager) Len() int { return len(m.notes) }

// Near returns the notes strictly closer than radius to (x, y), nearest
// first. A radius of 0 or less uses DefaultRadius.
func (m *Manager) Near(x, y int, radius float64) []Note {
	if radius <= 0 {
		radius = DefaultRadius
	}
	type hit struct {
		n Note
		d float64
	}
	var hits []hit
	for _, n := range m.notes {
		d := math.Hypot(float64(n.X-x), float64(n.Y-y))
		if d < radius {
			hits = append(hits, hit{n, d})
		}
	}
	// insertion sort keeps equal distances in timestamp order
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].d < hits[j-1].d; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]Note, len(hits))
	for i, h := range hits {
		out[i] = h.n
	}
	return out
}
