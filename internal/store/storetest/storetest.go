// Package storetest holds behavior tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

// Run exercises s against the store.Store contract. newStore must return an
// empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Images", func(t *testing.T) { testImages(t, newStore(t)) })
	t.Run("Operations", func(t *testing.T) { testOperations(t, newStore(t)) })
	t.Run("ReplaceOperations", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("ReplaceLargeLog", func(t *testing.T) { testReplaceLarge(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
	t.Run("ClosedStoreUnavailable", func(t *testing.T) { testClosed(t, newStore(t)) })
}

func testImages(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	imgs, err := s.Images(ctx)
	require.NoError(t, err)
	assert.Empty(t, imgs)

	older := store.Image{ID: "100", Blob: []byte{1, 2, 3}, MimeType: "image/png", SavedAt: time.UnixMilli(100).UTC()}
	newer := store.Image{ID: "200", Blob: []byte{4, 5}, MimeType: "image/jpeg", SavedAt: time.UnixMilli(200).UTC()}
	require.NoError(t, s.PutImage(ctx, older))
	require.NoError(t, s.PutImage(ctx, newer))

	imgs, err = s.Images(ctx)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "200", imgs[0].ID, "newest image first")
	assert.Equal(t, []byte{4, 5}, imgs[0].Blob)
	assert.Equal(t, "image/jpeg", imgs[0].MimeType)
	assert.True(t, imgs[0].SavedAt.Equal(newer.SavedAt), "savedAt round-trip: %v", imgs[0].SavedAt)

	// Put with an existing id overwrites.
	newer.Blob = []byte{9}
	require.NoError(t, s.PutImage(ctx, newer))
	imgs, err = s.Images(ctx)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, []byte{9}, imgs[0].Blob)

	require.NoError(t, s.ClearImages(ctx))
	imgs, err = s.Images(ctx)
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func testOperations(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	a := oplog.Operation{Type: oplog.TypeFill, X: 1, Y: 2, Color: "#FF0000", Timestamp: 20}
	b := oplog.Operation{Type: oplog.TypeFill, X: 3, Y: 4, Color: "#00FF00", Timestamp: 10}
	other := oplog.Operation{Type: oplog.TypeFill, X: 5, Y: 6, Color: "#0000FF", Timestamp: 30}

	require.NoError(t, s.AppendOperation(ctx, "img-a", a))
	require.NoError(t, s.AppendOperation(ctx, "img-a", b))
	require.NoError(t, s.AppendOperation(ctx, "img-b", other))

	ops, err := s.OperationsByImage(ctx, "img-a")
	require.NoError(t, err)
	assert.Equal(t, []oplog.Operation{a, b}, ops, "insertion order")

	ops, err = s.OperationsByImage(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, ops)

	require.NoError(t, s.ClearOperationsByImage(ctx, "img-a"))
	ops, err = s.OperationsByImage(ctx, "img-a")
	require.NoError(t, err)
	assert.Empty(t, ops)

	ops, err = s.OperationsByImage(ctx, "img-b")
	require.NoError(t, err)
	assert.Equal(t, []oplog.Operation{other}, ops, "other image untouched")
}

func testReplace(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendOperation(ctx, "img", oplog.Operation{Type: oplog.TypeFill, X: i, Color: "#000001", Timestamp: int64(i)}))
	}
	want := []oplog.Operation{
		{Type: oplog.TypeFill, X: 7, Y: 7, Color: "#ABCDEF", Timestamp: 1},
		{Type: oplog.TypeFill, X: 8, Y: 8, Color: "#123456", Timestamp: 2},
	}
	require.NoError(t, store.ReplaceOperations(ctx, s, "img", want))

	ops, err := s.OperationsByImage(ctx, "img")
	require.NoError(t, err)
	assert.Equal(t, want, ops)

	require.NoError(t, store.ReplaceOperations(ctx, s, "img", nil))
	ops, err = s.OperationsByImage(ctx, "img")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

// testReplaceLarge rewrites a log long enough to need several INSERT
// batches in SQL stores.
func testReplaceLarge(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	const n = 20000
	ops := make([]oplog.Operation, n)
	for i := range ops {
		ops[i] = oplog.Operation{Type: oplog.TypeFill, X: i % 640, Y: i / 640, Color: "#22C55E", Timestamp: int64(i + 1)}
	}
	require.NoError(t, store.ReplaceOperations(ctx, s, "img", ops[:5000]))
	require.NoError(t, store.ReplaceOperations(ctx, s, "img", ops))

	got, err := s.OperationsByImage(ctx, "img")
	require.NoError(t, err)
	require.Len(t, got, n)
	assert.Equal(t, ops[0], got[0])
	assert.Equal(t, ops[n-1], got[n-1])
}

func testNotes(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	id1, err := s.AppendNote(ctx, store.Note{ID: "ignored", ImageID: "img", X: 1, Y: 2, Text: "first", Color: "#FACC15", Timestamp: 2})
	require.NoError(t, err)
	id2, err := s.AppendNote(ctx, store.Note{ImageID: "img", X: 3, Y: 4, Text: "second", Timestamp: 1})
	require.NoError(t, err)
	_, err = s.AppendNote(ctx, store.Note{ImageID: "other", Text: "elsewhere", Timestamp: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, "ignored", id1, "store assigns ids")
	assert.NotEqual(t, id1, id2)

	notes, err := s.NotesByImage(ctx, "img")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Text, "ordered by timestamp")
	assert.Equal(t, id2, notes[0].ID)
	assert.Equal(t, store.Note{ID: id1, ImageID: "img", X: 1, Y: 2, Text: "first", Color: "#FACC15", Timestamp: 2}, notes[1])

	require.NoError(t, s.DeleteNote(ctx, id1))
	err = s.DeleteNote(ctx, id1)
	assert.True(t, errors.Is(err, store.ErrNotFound), "deleting twice: %v", err)

	notes, err = s.NotesByImage(ctx, "img")
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.NoError(t, s.ClearNotesByImage(ctx, "img"))
	notes, err = s.NotesByImage(ctx, "img")
	require.NoError(t, err)
	assert.Empty(t, notes)

	notes, err = s.NotesByImage(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, notes, 1, "other image's notes survive")
}

func testClosed(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Close())

	_, err := s.Images(ctx)
	assert.True(t, errors.Is(err, store.ErrUnavailable), "Images after close: %v", err)
	err = s.AppendOperation(ctx, "img", oplog.Operation{Type: oplog.TypeFill, Color: "#000000"})
	assert.True(t, errors.Is(err, store.ErrUnavailable), "AppendOperation after close: %v", err)
	_, err = s.AppendNote(ctx, store.Note{ImageID: "img", Text: "x"})
	assert.True(t, errors.Is(err, store.ErrUnavailable), "AppendNote after close: %v", err)
}
