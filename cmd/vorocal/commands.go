package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/maax3v3/vorocal/internal/bootstrap"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/pipeline"
	"github.com/maax3v3/vorocal/internal/server"
	"github.com/maax3v3/vorocal/internal/session"
)

// withEnv opens the stored session, runs fn and closes the store.
func (r *root) withEnv(ctx context.Context, fn func(env *bootstrap.Env) error) error {
	env, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

func (r *root) printStatus(st session.Status) {
	if !st.HasImage() {
		fmt.Fprintln(r.stdout, "No active image.")
		return
	}
	fmt.Fprintf(r.stdout, "Image %s (%dx%d, %s)\n", st.ImageID, st.Width, st.Height, st.MimeType)
	fmt.Fprintf(r.stdout, "Operations: %d  Notes: %d  Brush: %s\n", st.Operations, st.Notes, st.BrushName)
}

type serveCmd struct {
	*root
	fs *flag.FlagSet
}

func parseServeCmd(args []string, r *root) (*serveCmd, error) {
	fs := newFlagSet(r, "serve", "", "Serve the HTTP API until interrupted. The address comes from -listen.")
	cmd := &serveCmd{root: r, fs: fs}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, usageErrorf(fs, "serve takes no arguments")
	}
	return cmd, nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *serveCmd) Run(ctx context.Context) error {
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		if !isLoopback(c.settings.Listen) {
			env.Log.WithField("addr", c.settings.Listen).Warn("listening beyond the loopback interface; the API has no authentication")
		}
		return server.New(env.Session, env.Log).ListenAndServe(ctx, c.settings.Listen)
	})
}

type loadCmd struct {
	*root
	fs    *flag.FlagSet
	image string
}

func parseLoadCmd(args []string, r *root) (*loadCmd, error) {
	fs := newFlagSet(r, "load", "-image FILE", "Make FILE the active outline. Fills and notes of the previous image are discarded.")
	cmd := &loadCmd{root: r, fs: fs}
	fs.StringVar(&cmd.image, "image", "", "outline image (png, jpeg, webp, bmp, tiff)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.image == "" {
		return nil, usageErrorf(fs, "-image is required")
	}
	return cmd, nil
}

func (c *loadCmd) Run(ctx context.Context) error {
	blob, _, err := imaging.ReadBlob(imaging.ExpandPath(c.image))
	if err != nil {
		return err
	}
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		out, err := env.Session.Dispatch(ctx, session.LoadImage{Blob: blob})
		if err != nil {
			return err
		}
		c.printStatus(out.Status)
		return nil
	})
}

type fillCmd struct {
	*root
	fs    *flag.FlagSet
	x, y  float64
	color string
}

func parseFillCmd(args []string, r *root) (*fillCmd, error) {
	fs := newFlagSet(r, "fill", "-x X -y Y -color C", "Fill the region containing (X, Y) with color C (#RRGGBB).")
	cmd := &fillCmd{root: r, fs: fs}
	fs.Float64Var(&cmd.x, "x", -1, "x coordinate in image pixels")
	fs.Float64Var(&cmd.y, "y", -1, "y coordinate in image pixels")
	fs.StringVar(&cmd.color, "color", "", "fill color, #RRGGBB")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.color == "" {
		return nil, usageErrorf(fs, "-color is required")
	}
	if cmd.x < 0 || cmd.y < 0 {
		return nil, usageErrorf(fs, "-x and -y are required")
	}
	return cmd, nil
}

func (c *fillCmd) Run(ctx context.Context) error {
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		out, err := env.Session.Dispatch(ctx, session.Fill{X: c.x, Y: c.y, Color: c.color})
		if err != nil {
			return err
		}
		if out.Fill.Skipped != "" {
			fmt.Fprintf(c.stdout, "Nothing filled: %s\n", out.Fill.Skipped)
			return nil
		}
		fmt.Fprintf(c.stdout, "Filled %d pixels at (%d, %d) with %s\n",
			out.Fill.Filled, out.Fill.Operation.X, out.Fill.Operation.Y, out.Fill.Operation.Color)
		return nil
	})
}

type resetCmd struct {
	*root
	fs  *flag.FlagSet
	yes bool
}

func parseResetCmd(args []string, r *root) (*resetCmd, error) {
	fs := newFlagSet(r, "reset", "-yes", "Discard every fill of the active image. Notes are kept.")
	cmd := &resetCmd{root: r, fs: fs}
	fs.BoolVar(&cmd.yes, "yes", false, "confirm the reset")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !cmd.yes {
		return nil, usageErrorf(fs, "reset discards all fills; pass -yes to confirm")
	}
	return cmd, nil
}

func (c *resetCmd) Run(ctx context.Context) error {
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		if _, err := env.Session.Dispatch(ctx, session.Reset{Confirm: c.yes}); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "All fills discarded.")
		return nil
	})
}

type noteCmd struct {
	*root
	fs     *flag.FlagSet
	op     string
	x, y   float64
	radius float64
	text   string
	color  string
	id     string
}

func parseNoteCmd(args []string, r *root) (*noteCmd, error) {
	fs := newFlagSet(r, "note", "add|list|delete [flags]",
		"add -x X -y Y -text T [-color C]   anchor a note\nlist [-x X -y Y [-radius R]]         list notes, optionally near a point\ndelete -id ID                         remove a note")
	cmd := &noteCmd{root: r, fs: fs}
	fs.Float64Var(&cmd.x, "x", -1, "x coordinate")
	fs.Float64Var(&cmd.y, "y", -1, "y coordinate")
	fs.Float64Var(&cmd.radius, "radius", 0, "search radius for list (default 30)")
	fs.StringVar(&cmd.text, "text", "", "note text")
	fs.StringVar(&cmd.color, "color", "", "note color (default: selected brush)")
	fs.StringVar(&cmd.id, "id", "", "note id")
	if len(args) == 0 {
		return nil, usageErrorf(fs, "missing note operation")
	}
	cmd.op = strings.ToLower(args[0])
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	switch cmd.op {
	case "add":
		if cmd.x < 0 || cmd.y < 0 || strings.TrimSpace(cmd.text) == "" {
			return nil, usageErrorf(fs, "note add needs -x, -y and -text")
		}
	case "list":
		if (cmd.x < 0) != (cmd.y < 0) {
			return nil, usageErrorf(fs, "note list needs both -x and -y or neither")
		}
	case "delete":
		if cmd.id == "" {
			return nil, usageErrorf(fs, "note delete needs -id")
		}
	default:
		return nil, usageErrorf(fs, "unknown note operation %q", cmd.op)
	}
	return cmd, nil
}

func (c *noteCmd) Run(ctx context.Context) error {
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		switch c.op {
		case "add":
			out, err := env.Session.Dispatch(ctx, session.AddNote{X: c.x, Y: c.y, Text: c.text, Color: c.color})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Added note %s\n", out.Note.ID)
		case "delete":
			if _, err := env.Session.Dispatch(ctx, session.DeleteNote{ID: c.id}); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Deleted note %s\n", c.id)
		default:
			if !env.Session.Status().HasImage() {
				return session.ErrNoActiveImage
			}
			list := env.Session.Notes()
			if c.x >= 0 {
				list = env.Session.NotesNear(c.x, c.y, c.radius)
			}
			for _, n := range list {
				fmt.Fprintf(c.stdout, "%s\t(%d, %d)\t%s\t%s\n", n.ID, n.X, n.Y, n.Color, n.Text)
			}
		}
		return nil
	})
}

type statusCmd struct {
	*root
	fs     *flag.FlagSet
	asJSON bool
}

func parseStatusCmd(args []string, r *root) (*statusCmd, error) {
	fs := newFlagSet(r, "status", "[-json]", "Print the session status.")
	cmd := &statusCmd{root: r, fs: fs}
	fs.BoolVar(&cmd.asJSON, "json", false, "print as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (c *statusCmd) Run(ctx context.Context) error {
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		st := env.Session.Status()
		if c.asJSON {
			enc := json.NewEncoder(c.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		c.printStatus(st)
		return nil
	})
}

type exportCmd struct {
	*root
	fs     *flag.FlagSet
	format string
	out    string
}

func parseExportCmd(args []string, r *root) (*exportCmd, error) {
	fs := newFlagSet(r, "export", "[-format png|annotated|pdf|json] [-out FILE]",
		"Write the active image. The format defaults to the -out extension; the file name defaults to a dated name.")
	cmd := &exportCmd{root: r, fs: fs}
	fs.StringVar(&cmd.format, "format", "", "png, annotated, pdf or json")
	fs.StringVar(&cmd.out, "out", "", "output file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.format == "" && cmd.out == "" {
		return nil, usageErrorf(fs, "give -format, -out or both")
	}
	if cmd.format != "" {
		if _, err := pipeline.ParseFormat(cmd.format); err != nil {
			return nil, usageErrorf(fs, "%v", err)
		}
	}
	return cmd, nil
}

func (c *exportCmd) Run(ctx context.Context) error {
	f := pipeline.FormatFromPath(c.out)
	if c.format != "" {
		f, _ = pipeline.ParseFormat(c.format)
	}
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		v, err := env.Session.View()
		if err != nil {
			return err
		}
		a := pipeline.FromView(v, time.Now())
		path := c.out
		if path == "" {
			path = f.FileName(a.ExportedAt)
		}
		if err := pipeline.WriteFile(imaging.ExpandPath(path), f, a); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Wrote %s (%s)\n", path, f)
		return nil
	})
}

type importCmd struct {
	*root
	fs *flag.FlagSet
	in string
}

func parseImportCmd(args []string, r *root) (*importCmd, error) {
	fs := newFlagSet(r, "import", "-in FILE", "Replace the fills and notes of the active image with a backup.")
	cmd := &importCmd{root: r, fs: fs}
	fs.StringVar(&cmd.in, "in", "", "backup JSON file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.in == "" {
		return nil, usageErrorf(fs, "-in is required")
	}
	return cmd, nil
}

func (c *importCmd) Run(ctx context.Context) error {
	data, err := os.ReadFile(imaging.ExpandPath(c.in))
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	return c.withEnv(ctx, func(env *bootstrap.Env) error {
		out, err := env.Session.Dispatch(ctx, session.Import{Data: data})
		if err != nil {
			return err
		}
		res := out.Import
		fmt.Fprintf(c.stdout, "Imported %d operations (%d invalid) and %d notes\n", res.Operations, res.Invalid, res.Notes)
		if res.SkippedNotes > 0 {
			fmt.Fprintf(c.stdout, "Skipped %d notes\n", res.SkippedNotes)
		}
		return nil
	})
}

type replayCmd struct {
	*root
	fs     *flag.FlagSet
	cfg    pipeline.ReplayConfig
	format string
}

func parseReplayCmd(args []string, r *root) (*replayCmd, error) {
	fs := newFlagSet(r, "replay", "-image FILE -backup FILE -out FILE [-format F]",
		"Replay a backup onto an outline and write the result. The store is not used.")
	cmd := &replayCmd{root: r, fs: fs}
	fs.StringVar(&cmd.cfg.ImagePath, "image", "", "outline image")
	fs.StringVar(&cmd.cfg.BackupPath, "backup", "", "backup JSON")
	fs.StringVar(&cmd.cfg.OutPath, "out", "", "output file")
	fs.StringVar(&cmd.format, "format", "", "png, annotated, pdf or json (default from -out)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.cfg.ImagePath == "" || cmd.cfg.BackupPath == "" || cmd.cfg.OutPath == "" {
		return nil, usageErrorf(fs, "-image, -backup and -out are required")
	}
	if cmd.format != "" {
		f, err := pipeline.ParseFormat(cmd.format)
		if err != nil {
			return nil, usageErrorf(fs, "%v", err)
		}
		cmd.cfg.Format = f
	}
	return cmd, nil
}

func (c *replayCmd) Run(context.Context) error {
	if err := c.settings.Validate(); err != nil {
		return err
	}
	log, err := bootstrap.NewLogger(c.stderr, c.settings.LogLevel, c.settings.LogFormat)
	if err != nil {
		return err
	}
	c.cfg.Classifier = c.settings.Classifier()
	c.cfg.OutPath = imaging.ExpandPath(c.cfg.OutPath)
	if err := pipeline.Replay(c.cfg, log); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote %s\n", c.cfg.OutPath)
	return nil
}
