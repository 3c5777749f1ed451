// Package bootstrap turns resolved cli.Settings into a logger, a store and a
// restored session.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maax3v3/vorocal/internal/cli"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/session"
	"github.com/maax3v3/vorocal/internal/store"
	"github.com/maax3v3/vorocal/internal/store/gormstore"
	"github.com/maax3v3/vorocal/internal/store/memory"
	"github.com/maax3v3/vorocal/internal/store/redisstore"
)

// NewLogger builds a logrus logger writing to w.
func NewLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format must be text or json, got %q", format)
	}
	return log, nil
}

// OpenStore opens the store selected by s.StoreDriver.
func OpenStore(ctx context.Context, s cli.Settings) (store.Store, error) {
	switch s.StoreDriver {
	case cli.DriverMemory:
		return memory.New(), nil
	case cli.DriverSQLite:
		path := imaging.ExpandPath(s.SQLitePath)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating %s: %w", store.ErrUnavailable, dir, err)
			}
		}
		return nonNil(gormstore.OpenSQLite(path))
	case cli.DriverMySQL:
		return nonNil(gormstore.OpenMySQL(s.MySQLDSN))
	case cli.DriverRedis:
		return nonNil(redisstore.Open(ctx, redisstore.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		}))
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.StoreDriver)
	}
}

// nonNil keeps a failed constructor's typed nil out of the interface.
func nonNil[S store.Store](st S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Env is everything a command needs.
type Env struct {
	Settings cli.Settings
	Log      *logrus.Logger
	Store    store.Store
	Session  *session.Session
}

// Close releases the store.
func (e *Env) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

// Open builds the logger, opens the store and restores the newest image into
// a new session. A failed restore is logged and leaves an empty session; a
// store that cannot be opened at all is an error.
func Open(ctx context.Context, s cli.Settings, logOut io.Writer) (*Env, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	log, err := NewLogger(logOut, s.LogLevel, s.LogFormat)
	if err != nil {
		return nil, err
	}

	st, err := OpenStore(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", s.StoreDriver, err)
	}
	log.WithField("driver", s.StoreDriver).Debug("store opened")

	opts := session.DefaultOptions()
	opts.Classifier = s.Classifier()
	opts.MaxHistory = s.MaxHistory
	opts.MaxPixels = s.MaxPixels
	sess := session.New(st, log, opts)

	if err := sess.Restore(ctx); err != nil {
		log.WithError(err).Warn("starting with an empty session")
	} else if status := sess.Status(); status.HasImage() {
		log.WithFields(logrus.Fields{
			"image_id": status.ImageID,
			"ops":      status.Operations,
			"notes":    status.Notes,
		}).Info("session restored")
	}

	return &Env{Settings: s, Log: log, Store: st, Session: sess}, nil
}
