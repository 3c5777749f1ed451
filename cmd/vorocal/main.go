// Command vorocal paints the regions of an outline image, one fill at a time,
// and keeps the work in a local store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maax3v3/vorocal/internal/bootstrap"
	"github.com/maax3v3/vorocal/internal/cli"
)

type runnable interface{ Run(ctx context.Context) error }

// root carries the global settings into every subcommand.
type root struct {
	fs       *flag.FlagSet
	program  string
	settings cli.Settings
	stdout   io.Writer
	stderr   io.Writer
}

// UsageError asks for the usage of the failing command to be printed.
type UsageError struct {
	fs  *flag.FlagSet
	msg string
}

func (e *UsageError) Error() string {
	if e.msg == "" {
		return "invalid usage"
	}
	return e.msg
}

func usageErrorf(fs *flag.FlagSet, format string, args ...any) error {
	return &UsageError{fs: fs, msg: fmt.Sprintf(format, args...)}
}

// open resolves the environment for commands that work on the stored session.
func (r *root) open(ctx context.Context) (*bootstrap.Env, error) {
	return bootstrap.Open(ctx, r.settings, r.stderr)
}

func newFlagSet(r *root, name, args, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(r.program+" "+name, flag.ContinueOnError)
	fs.SetOutput(r.stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.stderr, "Usage: %s %s %s\n\n%s\n\nFlags:\n", r.program, name, args, summary)
		fs.PrintDefaults()
	}
	return fs
}

const commandsHelp = `Commands:
  serve      run the HTTP API on the loopback interface
  load       make an image the active outline
  fill       fill the region around a point
  reset      discard every fill of the active image
  note       add, list or delete notes
  status     print the session status
  export     write the active image as png, annotated png, pdf or json
  import     apply a backup file
  replay     paint an outline from a backup without touching the store`

func parseRoot(args []string, stdout, stderr io.Writer, getenv func(string) string) (runnable, error) {
	r := &root{program: "vorocal", stdout: stdout, stderr: stderr}
	settings, err := cli.FromEnv(getenv)
	if err != nil {
		return nil, err
	}
	r.settings = settings

	fs := flag.NewFlagSet(r.program, flag.ContinueOnError)
	fs.SetOutput(stderr)
	// Precedence: flag > environment (.env included) > default.
	r.settings.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [global flags] <command> [flags]\n\n%s\n\nGlobal flags (environment VOROCAL_*):\n", r.program, commandsHelp)
		fs.PrintDefaults()
	}
	r.fs = fs
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, &UsageError{fs: fs, msg: "missing command"}
	}

	name, rest := strings.ToLower(fs.Arg(0)), fs.Args()[1:]
	switch name {
	case "serve":
		return parseServeCmd(rest, r)
	case "load":
		return parseLoadCmd(rest, r)
	case "fill":
		return parseFillCmd(rest, r)
	case "reset":
		return parseResetCmd(rest, r)
	case "note", "notes":
		return parseNoteCmd(rest, r)
	case "status":
		return parseStatusCmd(rest, r)
	case "export":
		return parseExportCmd(rest, r)
	case "import":
		return parseImportCmd(rest, r)
	case "replay":
		return parseReplayCmd(rest, r)
	case "help":
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return nil, usageErrorf(fs, "unknown command %q", name)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	cmd, err := parseRoot(args, stdout, stderr, getenv)
	if err != nil {
		return err
	}
	return cmd.Run(ctx)
}

func main() {
	if err := cli.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ue *UsageError
	if errors.As(err, &ue) && ue.fs != nil {
		ue.fs.Usage()
		os.Exit(2)
	}
	os.Exit(1)
}
