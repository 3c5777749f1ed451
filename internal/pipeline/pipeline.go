// Package pipeline turns session state into export files and runs the
// offline replay of a backup onto an outline image.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maax3v3/vorocal/internal/aggregation"
	"github.com/maax3v3/vorocal/internal/backup"
	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/renderer"
	"github.com/maax3v3/vorocal/internal/session"
	"github.com/maax3v3/vorocal/internal/store"
)

// Format is an export file format.
type Format string

const (
	FormatPNG       Format = "png"       // the painted image
	FormatAnnotated Format = "annotated" // PNG with note markers and legend
	FormatPDF       Format = "pdf"       // printable sheet
	FormatJSON      Format = "json"      // backup document
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPNG, FormatAnnotated, FormatPDF, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w %q (want png, annotated, pdf or json)", ErrUnknownFormat, s)
}

// FormatFromPath guesses the format from a file extension, defaulting to PNG.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".json":
		return FormatJSON
	}
	return FormatPNG
}

// FileName returns the suggested download name for f.
func (f Format) FileName(t time.Time) string {
	switch f {
	case FormatJSON:
		return backup.FileName(t)
	case FormatPDF:
		return backup.PDFFileName(t)
	}
	return backup.ImageFileName(t)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	}
	return "image/png"
}

// Artifact is everything an export needs.
type Artifact struct {
	ImageID    string
	Current    *image.NRGBA
	Operations []oplog.Operation
	Notes      []store.Note
	ExportedAt time.Time
}

// FromView builds an Artifact from a session view.
func FromView(v session.View, now time.Time) Artifact {
	return Artifact{
		ImageID:    v.ImageID,
		Current:    v.Current,
		Operations: v.Operations,
		Notes:      v.Notes,
		ExportedAt: now,
	}
}

// Legend returns the color legend of a, with pixel counts.
func (a Artifact) Legend() []aggregation.ColorEntry {
	legend := aggregation.Legend(a.Operations, color.Moods)
	if a.Current != nil {
		aggregation.CountPixels(a.Current, legend)
	}
	return legend
}

// Write encodes a in format f.
func Write(w io.Writer, f Format, a Artifact) error {
	if f == FormatJSON {
		return backup.Encode(w, backup.New(a.ImageID, a.Operations, a.Notes, a.ExportedAt))
	}
	if a.Current == nil {
		return fmt.Errorf("export %s: no image", f)
	}

	ann := renderer.NewAnnotator(scaledConfig(a.Current.Bounds()))
	switch f {
	case FormatPNG:
		return imaging.EncodePNG(w, a.Current)
	case FormatAnnotated:
		return imaging.EncodePNG(w, ann.Annotate(a.Current, a.Notes, a.Legend()))
	case FormatPDF:
		return renderer.WritePDF(w, renderer.Sheet{
			Title:      "Voronoi calendar",
			Image:      ann.Annotate(a.Current, a.Notes, nil),
			Legend:     a.Legend(),
			Notes:      a.Notes,
			ExportedAt: a.ExportedAt,
		})
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// WriteFile writes a to path in format f.
func WriteFile(path string, f Format, a Artifact) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(out, f, a); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReplayConfig configures Replay.
type ReplayConfig struct {
	ImagePath  string
	BackupPath string
	OutPath    string
	// Format defaults to FormatFromPath(OutPath).
	Format     Format
	Classifier detection.Classifier
}

// Replay loads an outline and a backup, replays the backup's operations onto
// the outline and writes the result. No store is involved.
func Replay(cfg ReplayConfig, log logrus.FieldLogger) error {
	log.WithField("path", cfg.ImagePath).Info("loading image")
	img, err := imaging.Load(imaging.ExpandPath(cfg.ImagePath))
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	data, err := os.ReadFile(imaging.ExpandPath(cfg.BackupPath))
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	doc, err := backup.Parse(data)
	if err != nil {
		return fmt.Errorf("reading backup %s: %w", cfg.BackupPath, err)
	}

	cls := cfg.Classifier
	if cls == (detection.Classifier{}) {
		cls = detection.DefaultClassifier()
	}
	log.WithFields(logrus.Fields{
		"ops":      len(doc.Operations),
		"boundary": fmt.Sprintf("%.1f%%", cls.Detect(img).Coverage()*100),
	}).Info("replaying operations")
	current, invalid := oplog.Replay(img, doc.Operations, cls)
	if invalid > 0 {
		log.WithField("invalid", invalid).Warn("skipped invalid operations")
	}

	f := cfg.Format
	if f == "" {
		f = FormatFromPath(cfg.OutPath)
	}
	a := Artifact{
		ImageID:    doc.ImageID,
		Current:    current,
		Operations: doc.Operations,
		Notes:      doc.Notes,
		ExportedAt: doc.ExportedAt,
	}
	log.WithFields(logrus.Fields{"path": cfg.OutPath, "format": f}).Info("saving output")
	if err := WriteFile(imaging.ExpandPath(cfg.OutPath), f, a); err != nil {
		return fmt.Errorf("saving output: %w", err)
	}
	return nil
}

func scaledConfig(bounds image.Rectangle) renderer.Config {
	cfg := renderer.DefaultConfig()
	w := bounds.Dx()
	if w > 1000 {
		cfg.MarkerRadius = 16
		cfg.LegendSwatch = 28
		cfg.LegendSpacing = 22
		cfg.LegendPadding = 24
		cfg.LegendMargin = 24
	} else if w > 500 {
		cfg.MarkerRadius = 12
		cfg.LegendSwatch = 22
		cfg.LegendSpacing = 18
		cfg.LegendPadding = 18
		cfg.LegendMargin = 18
	}
	return cfg
}
