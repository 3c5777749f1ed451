package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"image"
	stdcolor "image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/session"
)

type testEnv struct {
	t   *testing.T
	dir string
	env map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	dir := t.TempDir()
	return &testEnv{t: t, dir: dir, env: map[string]string{
		"VOROCAL_SQLITE_PATH": filepath.Join(dir, "vorocal.db"),
		"VOROCAL_LOG_LEVEL":   "error",
	}}
}

func (e *testEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard, func(k string) string { return e.env[k] })
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("vorocal %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (e *testEnv) path(name string) string { return filepath.Join(e.dir, name) }

// writeOutline writes a 10x10 frame split by a line at x=5.
func (e *testEnv) writeOutline() string {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := stdcolor.NRGBA{255, 255, 255, 255}
			if x == 0 || y == 0 || x == 9 || y == 9 || x == 5 {
				c = stdcolor.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	p := e.path("outline.png")
	if err := imaging.SavePNG(p, img); err != nil {
		e.t.Fatal(err)
	}
	return p
}

func TestWorkflow(t *testing.T) {
	e := newTestEnv(t)
	outline := e.writeOutline()

	if out := e.mustRun("status"); !strings.Contains(out, "No active image") {
		t.Errorf("status before load = %q", out)
	}
	if out := e.mustRun("load", "-image", outline); !strings.Contains(out, "(10x10, image/png)") {
		t.Errorf("load output = %q", out)
	}
	if out := e.mustRun("fill", "-x", "2", "-y", "2", "-color", "#ff0000"); !strings.Contains(out, "Filled 32 pixels at (2, 2) with #FF0000") {
		t.Errorf("fill output = %q", out)
	}
	if out := e.mustRun("fill", "-x", "3", "-y", "3", "-color", "#FF0000"); !strings.Contains(out, "already filled") {
		t.Errorf("repeat fill output = %q", out)
	}
	e.mustRun("fill", "-x", "7", "-y", "7", "-color", "#3B82F6")
	e.mustRun("note", "add", "-x", "2", "-y", "2", "-text", "sunny")

	var st session.Status
	if err := json.Unmarshal([]byte(e.mustRun("status", "-json")), &st); err != nil {
		t.Fatal(err)
	}
	if st.Operations != 2 || st.Notes != 1 {
		t.Errorf("status = %+v", st)
	}

	if out := e.mustRun("note", "list", "-x", "3", "-y", "3"); !strings.Contains(out, "sunny") {
		t.Errorf("note list near = %q", out)
	}

	backupPath := e.path("backup.json")
	e.mustRun("export", "-out", backupPath)
	before := e.path("before.png")
	e.mustRun("export", "-format", "png", "-out", before)

	e.mustRun("reset", "-yes")
	if err := json.Unmarshal([]byte(e.mustRun("status", "-json")), &st); err != nil {
		t.Fatal(err)
	}
	if st.Operations != 0 || st.Notes != 1 {
		t.Errorf("after reset = %+v", st)
	}

	if out := e.mustRun("import", "-in", backupPath); !strings.Contains(out, "Imported 2 operations (0 invalid) and 1 notes") {
		t.Errorf("import output = %q", out)
	}
	after := e.path("after.png")
	e.mustRun("export", "-out", after)
	assertSameImage(t, before, after)

	replayed := e.path("replayed.png")
	e.mustRun("replay", "-image", outline, "-backup", backupPath, "-out", replayed)
	assertSameImage(t, before, replayed)

	pdf := e.path("sheet.pdf")
	e.mustRun("export", "-out", pdf)
	data, err := os.ReadFile(pdf)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("pdf export: %v", err)
	}
}

func assertSameImage(t *testing.T, a, b string) {
	t.Helper()
	ia, err := imaging.Load(a)
	if err != nil {
		t.Fatal(err)
	}
	ib, err := imaging.Load(b)
	if err != nil {
		t.Fatal(err)
	}
	if !imaging.Equal(ia, ib) {
		t.Errorf("%s and %s differ", filepath.Base(a), filepath.Base(b))
	}
}

func TestNoActiveImage(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run("fill", "-x", "1", "-y", "1", "-color", "#FF0000")
	if !errors.Is(err, session.ErrNoActiveImage) {
		t.Errorf("fill without image: %v", err)
	}
	_, err = e.run("export", "-format", "png")
	if !errors.Is(err, session.ErrNoActiveImage) {
		t.Errorf("export without image: %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"paint"}},
		{"load without image", []string{"load"}},
		{"fill without color", []string{"fill", "-x", "1", "-y", "1"}},
		{"fill without coordinates", []string{"fill", "-color", "#FF0000"}},
		{"reset without yes", []string{"reset"}},
		{"note without op", []string{"note"}},
		{"note unknown op", []string{"note", "edit"}},
		{"note add without text", []string{"note", "add", "-x", "1", "-y", "1"}},
		{"note list half point", []string{"note", "list", "-x", "1"}},
		{"note delete without id", []string{"note", "delete"}},
		{"export nothing", []string{"export"}},
		{"export bad format", []string{"export", "-format", "gif"}},
		{"import without file", []string{"import"}},
		{"replay missing", []string{"replay", "-image", "a.png"}},
		{"serve with args", []string{"serve", "now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRoot(tt.args, io.Discard, io.Discard, func(string) string { return "" })
			var ue *UsageError
			if !errors.As(err, &ue) {
				t.Errorf("parseRoot(%v) = %v, want UsageError", tt.args, err)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	_, err := parseRoot([]string{"help"}, io.Discard, io.Discard, func(string) string { return "" })
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("help = %v", err)
	}
}

func TestGlobalFlagsOverrideEnv(t *testing.T) {
	cmd, err := parseRoot([]string{"-tolerance", "5", "status"}, io.Discard, io.Discard, func(k string) string {
		if k == "VOROCAL_TOLERANCE" {
			return "30"
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := cmd.(*statusCmd).settings.Tolerance; got != 5 {
		t.Errorf("tolerance = %d, want 5", got)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:8754": true,
		"localhost:80":   true,
		"[::1]:8754":     true,
		"0.0.0.0:8754":   false,
		":8754":          false,
		"bogus":          false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Errorf("isLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}
