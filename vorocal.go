// Package vorocal paints the regions of a line drawing, one bucket fill at a
// time, and replays saved fills onto the same drawing.
//
// A region is a connected area of similar color bounded by dark outline
// pixels. Fills are recorded as operations; replaying the operations of a
// backup onto the original drawing reproduces the painted image exactly.
//
// Usage as a library:
//
//	img, _ := vorocal.LoadImage("calendar.png")
//	data, _ := os.ReadFile("vorocal-backup-2024-01-31.json")
//	painted, _ := vorocal.Replay(img, data, vorocal.DefaultOptions())
//	vorocal.SavePNG("painted.png", painted)
//
// Or use the file-based convenience:
//
//	err := vorocal.ReplayFile("calendar.png", "backup.json", "painted.png", vorocal.DefaultOptions())
package vorocal

import (
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/maax3v3/vorocal/internal/backup"
	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/pipeline"
)

// Options configures boundary detection during replay.
type Options struct {
	// BoundaryThreshold is the average RGB value (0–255) below which a pixel
	// is part of the outline.
	// Default: 60.
	BoundaryThreshold int

	// Tolerance is the maximum per-channel difference (0–255) for a pixel to
	// join the region of the seed pixel. It absorbs anti-aliasing.
	// Default: 40.
	Tolerance int

	// Logger receives progress messages. If nil, nothing is logged.
	Logger logrus.FieldLogger
}

// Color represents an RGBA color with 8-bit components.
type Color struct {
	R, G, B, A uint8
}

// DefaultOptions returns Options with the stock threshold and tolerance.
func DefaultOptions() Options {
	return Options{
		BoundaryThreshold: detection.DefaultBoundaryThreshold,
		Tolerance:         detection.DefaultTolerance,
	}
}

func (o Options) classifier() detection.Classifier {
	return detection.Classifier{BoundaryThreshold: o.BoundaryThreshold, Tolerance: o.Tolerance}
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ParseHexColor parses a six-digit color like "#FF0000" or "ff0000".
func ParseHexColor(hex string) (Color, error) {
	c, err := color.ParseHex(hex)
	if err != nil {
		return Color{}, err
	}
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}

// LoadImage reads an image from disk. Supports PNG, JPEG, WEBP, BMP and TIFF.
func LoadImage(path string) (image.Image, error) {
	return imaging.Load(path)
}

// SavePNG writes an image to disk as PNG.
func SavePNG(path string, img image.Image) error {
	return imaging.SavePNG(path, img)
}

// Replay applies the fill operations of a backup document to img and returns
// the painted copy. img itself is not modified. Operations that fail
// validation are skipped.
func Replay(img image.Image, backupJSON []byte, opts Options) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	doc, err := backup.Parse(backupJSON)
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}
	out, invalid := oplog.Replay(imaging.ToNRGBA(img), doc.Operations, opts.classifier())
	if invalid > 0 {
		opts.logger().WithField("invalid", invalid).Warn("skipped invalid operations")
	}
	return out, nil
}

// ReplayFile loads the outline at imagePath, replays the backup at
// backupPath and writes the result to outPath. The output format follows the
// extension of outPath: .pdf, .json or PNG otherwise.
func ReplayFile(imagePath, backupPath, outPath string, opts Options) error {
	return pipeline.Replay(pipeline.ReplayConfig{
		ImagePath:  imagePath,
		BackupPath: backupPath,
		OutPath:    outPath,
		Classifier: opts.classifier(),
	}, opts.logger())
}
