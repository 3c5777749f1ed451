package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
	"github.com/maax3v3/vorocal/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "vorocal.db"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_ImplementsReplacer(t *testing.T) {
	var _ store.OperationReplacer = (*Store)(nil)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vorocal.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	op := oplog.Operation{Type: oplog.TypeFill, X: 4, Y: 5, Color: "#EF4444", Timestamp: 1700000000000}
	require.NoError(t, s.AppendOperation(ctx, "img", op))
	id, err := s.AppendNote(ctx, store.Note{ImageID: "img", X: 1, Y: 1, Text: "remember", Timestamp: 5})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	ops, err := s.OperationsByImage(ctx, "img")
	require.NoError(t, err)
	assert.Equal(t, []oplog.Operation{op}, ops)

	notes, err := s.NotesByImage(ctx, "img")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, id, notes[0].ID)
	assert.Equal(t, "remember", notes[0].Text)
}

func TestOpenSQLite_BadPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}
