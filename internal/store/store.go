// Package store defines the persistence adapter used by a session: the
// active image blob, its fill operations and its notes, keyed by image id.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/maax3v3/vorocal/internal/oplog"
)

var (
	// ErrUnavailable wraps every failure to open, read or write the store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Image is a stored outline image.
type Image struct {
	ID       string
	Blob     []byte
	MimeType string
	SavedAt  time.Time
}

// Note is a text annotation anchored to a pixel of an image.
type Note struct {
	ID        string `json:"id"`
	ImageID   string `json:"imageId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Text      string `json:"text"`
	Color     string `json:"color,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Store is the persistence adapter. Implementations must be safe for
// sequential use from one session; every error wraps ErrUnavailable unless
// documented otherwise.
type Store interface {
	PutImage(ctx context.Context, img Image) error
	// Images returns all stored images, newest first.
	Images(ctx context.Context) ([]Image, error)
	ClearImages(ctx context.Context) error

	AppendOperation(ctx context.Context, imageID string, op oplog.Operation) error
	// OperationsByImage returns the operations of imageID in insertion order.
	OperationsByImage(ctx context.Context, imageID string) ([]oplog.Operation, error)
	ClearOperationsByImage(ctx context.Context, imageID string) error

	// AppendNote stores n under n.ImageID, ignoring n.ID, and returns the
	// newly assigned id.
	AppendNote(ctx context.Context, n Note) (string, error)
	// NotesByImage returns the notes of imageID ordered by timestamp.
	NotesByImage(ctx context.Context, imageID string) ([]Note, error)
	// DeleteNote removes a note; unknown ids wrap ErrNotFound.
	DeleteNote(ctx context.Context, id string) error
	ClearNotesByImage(ctx context.Context, imageID string) error

	Close() error
}

// OperationReplacer is implemented by stores that can swap an image's whole
// operation list atomically.
type OperationReplacer interface {
	ReplaceOperations(ctx context.Context, imageID string, ops []oplog.Operation) error
}

// ReplaceOperations clears the stored operations of imageID and writes ops.
// It uses OperationReplacer when s provides it.
func ReplaceOperations(ctx context.Context, s Store, imageID string, ops []oplog.Operation) error {
	if r, ok := s.(OperationReplacer); ok {
		return r.ReplaceOperations(ctx, imageID, ops)
	}
	if err := s.ClearOperationsByImage(ctx, imageID); err != nil {
		return err
	}
	for _, op := range ops {
		if err := s.AppendOperation(ctx, imageID, op); err != nil {
			return err
		}
	}
	return nil
}
