// Package memory is an in-process store, used for tests and for sessions
// that do not need to survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

// Store keeps everything in maps guarded by a mutex.
type Store struct {
	mu     sync.Mutex
	images map[string]store.Image
	ops    map[string][]oplog.Operation
	notes  map[string]store.Note
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		images: make(map[string]store.Image),
		ops:    make(map[string][]oplog.Operation),
		notes:  make(map[string]store.Note),
	}
}

func (s *Store) check() error {
	if s.closed {
		return fmt.Errorf("%w: memory store closed", store.ErrUnavailable)
	}
	return nil
}

func (s *Store) PutImage(_ context.Context, img store.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	img.Blob = append([]byte(nil), img.Blob...)
	s.images[img.ID] = img
	return nil
}

func (s *Store) Images(_ context.Context) ([]store.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]store.Image, 0, len(s.images))
	for _, img := range s.images {
		img.Blob = append([]byte(nil), img.Blob...)
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ClearImages(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.images = make(map[string]store.Image)
	return nil
}

func (s *Store) AppendOperation(_ context.Context, imageID string, op oplog.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.ops[imageID] = append(s.ops[imageID], op)
	return nil
}

func (s *Store) OperationsByImage(_ context.Context, imageID string) ([]oplog.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return oplog.Clone(s.ops[imageID]), nil
}

func (s *Store) ClearOperationsByImage(_ context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	delete(s.ops, imageID)
	return nil
}

// ReplaceOperations swaps the whole list under one lock.
func (s *Store) ReplaceOperations(_ context.Context, imageID string, ops []oplog.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if len(ops) == 0 {
		delete(s.ops, imageID)
		return nil
	}
	s.ops[imageID] = oplog.Clone(ops)
	return nil
}

func (s *Store) AppendNote(_ context.Context, n store.Note) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	n.ID = uuid.NewString()
	s.notes[n.ID] = n
	return n.ID, nil
}

func (s *Store) NotesByImage(_ context.Context, imageID string) ([]store.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []store.Note
	for _, n := range s.notes {
		if n.ImageID == imageID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) ClearNotesByImage(_ context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for id, n := range s.notes {
		if n.ImageID == imageID {
			delete(s.notes, id)
		}
	}
	return nil
}

// Close marks the store closed; later calls fail with store.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
