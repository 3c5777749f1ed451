// Package history implements bounded linear undo/redo over paired snapshots
// of a pixel buffer and its operation log.
package history

import (
	"image"

	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/oplog"
)

// DefaultMaxHistory is the default undo depth.
const DefaultMaxHistory = 100

// Entry is a buffer snapshot together with the operation log that produced it.
type Entry struct {
	Buffer     *image.NRGBA
	Operations []oplog.Operation
}

// Snapshot deep-copies buf and ops into an Entry.
func Snapshot(buf *image.NRGBA, ops []oplog.Operation) Entry {
	return Entry{
		Buffer:     imaging.Clone(buf),
		Operations: oplog.Clone(ops),
	}
}

// Manager holds the undo and redo stacks.
type Manager struct {
	max  int
	undo []Entry
	redo []Entry
}

// New returns a Manager keeping at most max undo entries. A max below 1
// falls back to DefaultMaxHistory.
func New(max int) *Manager {
	if max < 1 {
		max = DefaultMaxHistory
	}
	return &Manager{max: max}
}

// Record pushes the pre-mutation state onto the undo stack and invalidates
// redo history.
func (m *Manager) Record(e Entry) {
	m.pushUndo(e)
	m.redo = nil
}

// Undo swaps current onto the redo stack and returns the most recent undo
// entry. ok is false, and nothing changes, when there is nothing to undo.
func (m *Manager) Undo(current Entry) (Entry, bool) {
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	m.redo = append(m.redo, current)
	e := m.undo[len(m.undo)-1]
	m.undo[len(m.undo)-1] = Entry{}
	m.undo = m.undo[:len(m.undo)-1]
	return e, true
}

// Redo is the mirror of Undo.
func (m *Manager) Redo(current Entry) (Entry, bool) {
	if len(m.redo) == 0 {
		return Entry{}, false
	}
	m.pushUndo(current)
	e := m.redo[len(m.redo)-1]
	m.redo[len(m.redo)-1] = Entry{}
	m.redo = m.redo[:len(m.redo)-1]
	return e, true
}

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoDepth returns the number of undo entries.
func (m *Manager) UndoDepth() int { return len(m.undo) }

// RedoDepth returns the number of redo entries.
func (m *Manager) RedoDepth() int { return len(m.redo) }

// pushUndo appends e and evicts the oldest entries beyond the bound.
func (m *Manager) pushUndo(e Entry) {
	m.undo = append(m.undo, e)
	if over := len(m.undo) - m.max; over > 0 {
		n := copy(m.undo, m.undo[over:])
		for i := n; i < len(m.undo); i++ {
			m.undo[i] = Entry{}
		}
		m.undo = m.undo[:n]
	}
}
