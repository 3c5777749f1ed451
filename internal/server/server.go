// Package server exposes a session over a small JSON/PNG HTTP API meant to be
// bound to the loopback interface.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/notes"
	"github.com/maax3v3/vorocal/internal/pipeline"
	"github.com/maax3v3/vorocal/internal/session"
	"github.com/maax3v3/vorocal/internal/store"
)

// MaxUploadBytes bounds image and backup uploads.
const MaxUploadBytes = 32 << 20

// Server routes HTTP requests to a session.
type Server struct {
	sess *session.Session
	log  logrus.FieldLogger
	now  func() time.Time
}

// New returns a Server for sess.
func New(sess *session.Session, log logrus.FieldLogger) *Server {
	return &Server{sess: sess, log: log, now: time.Now}
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/palette", s.palette)
		r.Post("/brush", s.brush)

		r.Post("/image", s.loadImage)
		r.Get("/image/original.png", s.originalPNG)
		r.Get("/image/current.png", s.currentPNG)

		r.Post("/fill", s.fill)
		r.Post("/undo", s.undo)
		r.Post("/redo", s.redo)
		r.Post("/reset", s.reset)
		r.Get("/operations", s.operations)

		r.Get("/export.json", s.export(pipeline.FormatJSON))
		r.Get("/export.pdf", s.export(pipeline.FormatPDF))
		r.Post("/import", s.importBackup)

		r.Get("/notes", s.listNotes)
		r.Post("/notes", s.addNote)
		r.Delete("/notes/{id}", s.deleteNote)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Debug("request")
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoActiveImage):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotConfirmed):
		return http.StatusPreconditionFailed
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	entry := s.log.WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
		"status":     code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxUploadBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %w", session.ErrInvalidInput, err)
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", session.ErrInvalidInput, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: body larger than %d bytes", session.ErrInvalidInput, MaxUploadBytes)
	}
	return data, nil
}

// outcomeBody is the JSON answer to every mutating request.
type outcomeBody struct {
	Status  session.Status        `json:"status"`
	Changed bool                  `json:"changed"`
	Fill    *session.FillResult   `json:"fill,omitempty"`
	Import  *session.ImportResult `json:"import,omitempty"`
	Note    *notes.Note           `json:"note,omitempty"`
	Warning string                `json:"warning,omitempty"`
}

// dispatch runs in and answers with the outcome. A storage failure after the
// in-memory change is reported as a warning next to the new state.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, in session.Intent, code int) {
	out, err := s.sess.Dispatch(r.Context(), in)
	body := outcomeBody{
		Status:  out.Status,
		Changed: out.Changed,
		Fill:    out.Fill,
		Import:  out.Import,
		Note:    out.Note,
	}
	if err != nil {
		if !errors.Is(err, session.ErrStorageUnavailable) || !out.Changed {
			s.fail(w, r, err)
			return
		}
		s.log.WithError(err).Error("change kept in memory only")
		body.Warning = err.Error()
	}
	writeJSON(w, code, body)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Status())
}

type swatch struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

func (s *Server) palette(w http.ResponseWriter, _ *http.Request) {
	out := make([]swatch, len(color.Moods))
	for i, sw := range color.Moods {
		out[i] = swatch{Name: sw.Name, Hex: sw.Hex}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) brush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.dispatch(w, r, session.SelectColor{Color: req.Color}, http.StatusOK)
}

func (s *Server) loadImage(w http.ResponseWriter, r *http.Request) {
	blob, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dispatch(w, r, session.LoadImage{Blob: blob}, http.StatusCreated)
}

func (s *Server) originalPNG(w http.ResponseWriter, r *http.Request) {
	v, err := s.sess.View()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, v.Original); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) currentPNG(w http.ResponseWriter, r *http.Request) {
	f := pipeline.FormatPNG
	if annotated, _ := strconv.ParseBool(r.URL.Query().Get("annotated")); annotated {
		f = pipeline.FormatAnnotated
	}
	s.writeArtifact(w, r, f, false)
}

func (s *Server) export(f pipeline.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeArtifact(w, r, f, true)
	}
}

// writeArtifact encodes into a buffer first so encoding errors still produce
// a clean error response.
func (s *Server) writeArtifact(w http.ResponseWriter, r *http.Request, f pipeline.Format, download bool) {
	v, err := s.sess.View()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a := pipeline.FromView(v, s.now())
	var buf bytes.Buffer
	if err := pipeline.Write(&buf, f, a); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	if download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.FileName(a.ExportedAt)))
	}
	_, _ = w.Write(buf.Bytes())
}

type fillRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

func (s *Server) fill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.dispatch(w, r, session.Fill{X: req.X, Y: req.Y, Color: req.Color}, http.StatusOK)
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.Undo{}, http.StatusOK)
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.Redo{}, http.StatusOK)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.dispatch(w, r, session.Reset{Confirm: req.Confirm}, http.StatusOK)
}

func (s *Server) operations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Operations())
}

func (s *Server) importBackup(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dispatch(w, r, session.Import{Data: data}, http.StatusOK)
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("x") == "" && q.Get("y") == "" {
		writeJSON(w, http.StatusOK, s.sess.Notes())
		return
	}
	var coords [3]float64
	for i, name := range []string{"x", "y", "radius"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: query %s: %w", session.ErrInvalidInput, name, err))
			return
		}
		coords[i] = v
	}
	writeJSON(w, http.StatusOK, s.sess.NotesNear(coords[0], coords[1], coords[2]))
}

type noteRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.dispatch(w, r, session.AddNote{X: req.X, Y: req.Y, Text: req.Text, Color: req.Color}, http.StatusCreated)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, session.DeleteNote{ID: chi.URLParam(r, "id")}, http.StatusOK)
}
