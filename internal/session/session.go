// Package session owns the state of the active image and executes user
// intents against it: fills, undo/redo, reset, backup import/export and
// notes. Every intent runs under one mutex, including its store writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maax3v3/vorocal/internal/backup"
	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/fill"
	"github.com/maax3v3/vorocal/internal/history"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/notes"
	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

// Options configures a Session.
type Options struct {
	Classifier detection.Classifier
	MaxHistory int
	// MaxPixels bounds the decoded size of loaded images.
	MaxPixels int
	// Brush is the initially selected color.
	Brush string
	// Now is the clock used for ids and timestamps.
	Now func() time.Time
}

// DefaultOptions returns the stock classifier, history depth and brush.
func DefaultOptions() Options {
	return Options{
		Classifier: detection.DefaultClassifier(),
		MaxHistory: history.DefaultMaxHistory,
		MaxPixels:  imaging.DefaultMaxPixels,
		Brush:      color.DefaultBrush,
		Now:        time.Now,
	}
}

// Session is the state of one active image.
type Session struct {
	mu    sync.Mutex
	store store.Store
	log   logrus.FieldLogger
	cls   detection.Classifier
	now   func() time.Time
	// maxPixels is the decode budget for image blobs; <= 0 means the default.
	maxPixels int

	imageID  string
	mimeType string
	original *image.NRGBA
	current  *image.NRGBA
	ops      *oplog.Log
	history  *history.Manager
	notes    *notes.Manager
	brush    string
	// lastStamp is the newest operation timestamp handed out or loaded.
	lastStamp int64
}

// New returns an empty session backed by s. A nil log discards output.
func New(s store.Store, log logrus.FieldLogger, opts Options) *Session {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Classifier == (detection.Classifier{}) {
		opts.Classifier = detection.DefaultClassifier()
	}
	brush, err := color.NormalizeHex(opts.Brush)
	if err != nil {
		brush = color.DefaultBrush
	}
	return &Session{
		store:     s,
		log:       log,
		cls:       opts.Classifier,
		now:       opts.Now,
		maxPixels: opts.MaxPixels,
		ops:       oplog.New(nil),
		history:   history.New(opts.MaxHistory),
		notes:     notes.New(s),
		brush:     brush,
	}
}

// Dispatch executes one intent while holding the session lock.
func (s *Session) Dispatch(ctx context.Context, in Intent) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := in.run(ctx, s)
	out.Status = s.status()
	return out, err
}

// Restore loads the newest stored image, replays its operations and loads
// its notes. Read failures leave an empty (or partially restored) session,
// are logged as warnings and returned.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imgs, err := s.store.Images(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not read saved images, starting empty")
		return fmt.Errorf("restore: %w", err)
	}
	if len(imgs) == 0 {
		s.log.Info("no saved image")
		return nil
	}
	rec := imgs[0]
	buf, _, err := imaging.DecodeBytesLimit(rec.Blob, s.maxPixels)
	if err != nil {
		s.log.WithError(err).WithField("image_id", rec.ID).Warn("saved image is unreadable, starting empty")
		return fmt.Errorf("restore image %s: %w: %w", rec.ID, ErrInvalidInput, err)
	}
	s.activate(rec.ID, rec.MimeType, buf)
	log := s.log.WithField("image_id", rec.ID)

	var errs []error
	ops, err := s.store.OperationsByImage(ctx, rec.ID)
	if err != nil {
		log.WithError(err).Warn("could not read operations")
		errs = append(errs, err)
	} else {
		s.ops.Replace(ops)
		var invalid int
		s.current, invalid = oplog.Replay(s.original, s.ops.Ops(), s.cls)
		if invalid > 0 {
			log.WithField("invalid", invalid).Warn("skipped invalid stored operations")
		}
		s.bumpClock(s.ops)
	}
	if err := s.notes.Load(ctx, rec.ID); err != nil {
		log.WithError(err).Warn("could not read notes")
		errs = append(errs, err)
	}
	log.WithFields(logrus.Fields{"ops": s.ops.Len(), "notes": s.notes.Len()}).Info("session restored")
	if len(errs) > 0 {
		return fmt.Errorf("restore image %s: %w", rec.ID, errors.Join(errs...))
	}
	return nil
}

// activate makes buf the active image with a clean log and history.
func (s *Session) activate(id, mimeType string, buf *image.NRGBA) {
	s.imageID = id
	s.mimeType = mimeType
	s.original = buf
	s.current = imaging.Clone(buf)
	s.ops.Clear()
	s.history.Clear()
	s.lastStamp = 0

	m := s.cls.Detect(buf)
	s.log.WithFields(logrus.Fields{
		"image_id": id,
		"width":    buf.Bounds().Dx(),
		"height":   buf.Bounds().Dy(),
		"boundary": fmt.Sprintf("%.1f%%", m.Coverage()*100),
	}).Info("image loaded")
}

// stamp returns a timestamp strictly greater than every earlier one.
func (s *Session) stamp() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastStamp {
		ts = s.lastStamp + 1
	}
	s.lastStamp = ts
	return ts
}

func (s *Session) bumpClock(l *oplog.Log) {
	if last, ok := l.Last(); ok && last.Timestamp > s.lastStamp {
		s.lastStamp = last.Timestamp
	}
}

func (s *Session) requireImage() error {
	if s.original == nil {
		return ErrNoActiveImage
	}
	return nil
}

func (s *Session) entry() history.Entry {
	return history.Entry{Buffer: s.current, Operations: s.ops.Ops()}
}

// loadImage decodes blob and makes it the active image. The previous image's
// operations and notes are removed from the store.
func (s *Session) loadImage(ctx context.Context, blob []byte) error {
	buf, format, err := imaging.DecodeBytesLimit(blob, s.maxPixels)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if buf.Bounds().Empty() {
		return fmt.Errorf("%w: image has no pixels", ErrInvalidInput)
	}

	prev := s.imageID
	now := s.now()
	id := strconv.FormatInt(now.UnixMilli(), 10)
	if id == prev {
		id = strconv.FormatInt(now.UnixMilli()+1, 10)
	}
	mimeType := imaging.MimeType(format)
	s.activate(id, mimeType, buf)

	var errs []error
	// Every stored image goes, not just the one in memory: a failed restore
	// leaves prev empty while the old records are still there.
	stale := map[string]bool{}
	if prev != "" {
		stale[prev] = true
	}
	imgs, err := s.store.Images(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	for _, img := range imgs {
		stale[img.ID] = true
	}
	delete(stale, id)
	if err := s.store.ClearImages(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.PutImage(ctx, store.Image{ID: id, Blob: blob, MimeType: mimeType, SavedAt: now.UTC()}); err != nil {
		errs = append(errs, err)
	}
	for old := range stale {
		if err := s.store.ClearOperationsByImage(ctx, old); err != nil {
			errs = append(errs, err)
		}
		if err := s.store.ClearNotesByImage(ctx, old); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.notes.Load(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("saving image %s: %w", id, errors.Join(errs...))
	}
	return nil
}

// FillResult reports the outcome of a fill intent.
type FillResult struct {
	Seed      image.Point      `json:"-"`
	Filled    int              `json:"filled"`
	Skipped   string           `json:"skipped,omitempty"`
	Operation *oplog.Operation `json:"operation,omitempty"`
}

func (s *Session) fill(ctx context.Context, x, y float64, hex string) (FillResult, error) {
	if err := s.requireImage(); err != nil {
		return FillResult{}, err
	}
	c, err := color.ParseHex(hex)
	if err != nil {
		return FillResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	seed := fill.Seed(x, y)
	log := s.log.WithFields(logrus.Fields{"image_id": s.imageID, "x": seed.X, "y": seed.Y, "color": c.Hex()})

	if skip := fill.Check(s.current, seed, c, s.cls); skip != fill.None {
		log.WithField("reason", skip.String()).Debug("fill skipped")
		return FillResult{Seed: seed, Skipped: skip.String()}, nil
	}

	s.history.Record(history.Snapshot(s.current, s.ops.Ops()))
	res := fill.Fill(s.current, seed, c, s.cls)
	op := oplog.Operation{
		Type:      oplog.TypeFill,
		X:         seed.X,
		Y:         seed.Y,
		Color:     c.Hex(),
		Timestamp: s.stamp(),
	}
	s.ops.Append(op)
	log.WithField("pixels", res.Filled).Debug("filled")

	if err := s.store.AppendOperation(ctx, s.imageID, op); err != nil {
		log.WithError(err).Error("could not persist fill operation")
	}
	return FillResult{Seed: seed, Filled: res.Filled, Operation: &op}, nil
}

// restore swaps in a history entry and rewrites the stored log.
func (s *Session) restore(ctx context.Context, e history.Entry) error {
	s.current = e.Buffer
	s.ops.Replace(e.Operations)
	if err := store.ReplaceOperations(ctx, s.store, s.imageID, s.ops.Ops()); err != nil {
		return fmt.Errorf("syncing operations: %w", err)
	}
	return nil
}

func (s *Session) undo(ctx context.Context) (bool, error) {
	if s.original == nil {
		return false, nil
	}
	e, ok := s.history.Undo(s.entry())
	if !ok {
		return false, nil
	}
	s.log.WithFields(logrus.Fields{"image_id": s.imageID, "ops": len(e.Operations)}).Debug("undo")
	return true, s.restore(ctx, e)
}

func (s *Session) redo(ctx context.Context) (bool, error) {
	if s.original == nil {
		return false, nil
	}
	e, ok := s.history.Redo(s.entry())
	if !ok {
		return false, nil
	}
	s.log.WithFields(logrus.Fields{"image_id": s.imageID, "ops": len(e.Operations)}).Debug("redo")
	return true, s.restore(ctx, e)
}

func (s *Session) reset(ctx context.Context, confirm bool) error {
	if err := s.requireImage(); err != nil {
		return err
	}
	if !confirm {
		return ErrNotConfirmed
	}
	s.current = imaging.Clone(s.original)
	s.ops.Clear()
	s.history.Clear()
	s.log.WithField("image_id", s.imageID).Info("fills reset")
	if err := s.store.ClearOperationsByImage(ctx, s.imageID); err != nil {
		return fmt.Errorf("clearing operations: %w", err)
	}
	return nil
}

// ImportResult reports what an import applied.
type ImportResult struct {
	Operations   int `json:"operations"`
	Invalid      int `json:"invalid"`
	Notes        int `json:"notes"`
	SkippedNotes int `json:"skippedNotes"`
}

func (s *Session) importBackup(ctx context.Context, data []byte) (ImportResult, error) {
	doc, err := backup.Parse(data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.requireImage(); err != nil {
		return ImportResult{}, err
	}

	s.history.Clear()
	s.ops.Replace(doc.Operations)
	var invalid int
	s.current, invalid = oplog.Replay(s.original, s.ops.Ops(), s.cls)
	s.bumpClock(s.ops)
	res := ImportResult{Operations: s.ops.Len(), Invalid: invalid}

	var errs []error
	if err := store.ReplaceOperations(ctx, s.store, s.imageID, s.ops.Ops()); err != nil {
		errs = append(errs, err)
	}
	skipped, err := s.notes.Replace(ctx, doc.Notes)
	if err != nil {
		errs = append(errs, err)
	}
	res.Notes = s.notes.Len()
	res.SkippedNotes = skipped

	s.log.WithFields(logrus.Fields{
		"image_id": s.imageID,
		"ops":      res.Operations,
		"notes":    res.Notes,
	}).Info("backup imported")
	if len(errs) > 0 {
		return res, fmt.Errorf("saving import: %w", errors.Join(errs...))
	}
	return res, nil
}

func (s *Session) export() (backup.Document, error) {
	if err := s.requireImage(); err != nil {
		return backup.Document{}, err
	}
	return backup.New(s.imageID, s.ops.Ops(), s.notes.List(), s.now()), nil
}

func (s *Session) addNote(ctx context.Context, x, y float64, text, hex string) (notes.Note, error) {
	if err := s.requireImage(); err != nil {
		return notes.Note{}, err
	}
	if hex == "" {
		hex = s.brush
	}
	p := fill.Seed(x, y)
	n, err := s.notes.Add(ctx, p.X, p.Y, text, hex, s.now().UnixMilli())
	switch {
	case errors.Is(err, notes.ErrEmptyText), errors.Is(err, color.ErrInvalidColor):
		return notes.Note{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case err != nil:
		return notes.Note{}, fmt.Errorf("saving note: %w", err)
	}
	return n, nil
}

func (s *Session) deleteNote(ctx context.Context, id string) error {
	if err := s.requireImage(); err != nil {
		return err
	}
	if !s.notes.Has(id) {
		return fmt.Errorf("deleting note: note %s: %w", id, store.ErrNotFound)
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}

// Fill floods the region under (x, y) with hex. Fractional coordinates are
// floored. A fill that would change nothing returns a result with Skipped
// set and records nothing.
func (s *Session) Fill(ctx context.Context, x, y float64, hex string) (FillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fill(ctx, x, y, hex)
}

// Undo restores the previous state; it reports false when there was none.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undo(ctx)
}

// Redo re-applies the last undone state.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redo(ctx)
}

// Reset discards every fill of the active image. confirm must be true.
func (s *Session) Reset(ctx context.Context, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset(ctx, confirm)
}

// LoadImage makes blob the active image.
func (s *Session) LoadImage(ctx context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadImage(ctx, blob)
}

// Import replaces the operations and notes of the active image with those
// of a backup and replays them onto the original.
func (s *Session) Import(ctx context.Context, data []byte) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importBackup(ctx, data)
}

// Export returns a backup of the active image's operations and notes.
func (s *Session) Export() (backup.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export()
}

// AddNote anchors a note at (x, y). An empty hex uses the selected brush.
func (s *Session) AddNote(ctx context.Context, x, y float64, text, hex string) (notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNote(ctx, x, y, text, hex)
}

// DeleteNote removes a note of the active image.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNote(ctx, id)
}

// SetBrush selects the color used for notes without an explicit color.
func (s *Session) SetBrush(hex string) error {
	_, err := s.Dispatch(context.Background(), SelectColor{Color: hex})
	return err
}

// Notes returns the notes of the active image.
func (s *Session) Notes() []notes.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes.List()
}

// NotesNear returns the notes strictly within radius of (x, y).
func (s *Session) NotesNear(x, y, radius float64) []notes.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := fill.Seed(x, y)
	return s.notes.Near(p.X, p.Y, radius)
}

// Operations returns the operation log of the active image.
func (s *Session) Operations() []oplog.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.Ops()
}

// View is a consistent copy of the active image state.
type View struct {
	ImageID    string
	Original   *image.NRGBA
	Current    *image.NRGBA
	Operations []oplog.Operation
	Notes      []notes.Note
}

// View copies the active image state. It fails with ErrNoActiveImage when
// nothing is loaded.
func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireImage(); err != nil {
		return View{}, err
	}
	return View{
		ImageID:    s.imageID,
		Original:   imaging.Clone(s.original),
		Current:    imaging.Clone(s.current),
		Operations: s.ops.Ops(),
		Notes:      s.notes.List(),
	}, nil
}

// Classifier returns the boundary classifier in use.
func (s *Session) Classifier() detection.Classifier { return s.cls }
