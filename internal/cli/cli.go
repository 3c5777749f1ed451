// Package cli holds the runtime settings shared by every vorocal command and
// the rules for filling them from defaults, the environment and flags.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/maax3v3/vorocal/internal/detection"
	"github.com/maax3v3/vorocal/internal/history"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/store/redisstore"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// EnvPrefix prefixes every environment variable read by Settings.
const EnvPrefix = "VOROCAL_"

// Settings is the resolved runtime configuration.
type Settings struct {
	StoreDriver   string
	SQLitePath    string
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	BoundaryThreshold int
	Tolerance         int
	MaxHistory        int
	MaxPixels         int

	Listen    string
	LogLevel  string
	LogFormat string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		StoreDriver:       DriverSQLite,
		SQLitePath:        "~/.vorocal/vorocal.db",
		RedisAddr:         "127.0.0.1:6379",
		RedisPrefix:       redisstore.DefaultPrefix,
		BoundaryThreshold: detection.DefaultBoundaryThreshold,
		Tolerance:         detection.DefaultTolerance,
		MaxHistory:        history.DefaultMaxHistory,
		MaxPixels:         imaging.DefaultMaxPixels,
		Listen:            "127.0.0.1:8754",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays VOROCAL_* variables on the defaults. getenv is usually
// os.Getenv.
func FromEnv(getenv func(string) string) (Settings, error) {
	s := DefaultSettings()
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}

	str("STORE", &s.StoreDriver)
	str("SQLITE_PATH", &s.SQLitePath)
	str("MYSQL_DSN", &s.MySQLDSN)
	str("REDIS_ADDR", &s.RedisAddr)
	str("REDIS_PASSWORD", &s.RedisPassword)
	num("REDIS_DB", &s.RedisDB)
	str("REDIS_PREFIX", &s.RedisPrefix)
	num("BOUNDARY_THRESHOLD", &s.BoundaryThreshold)
	num("TOLERANCE", &s.Tolerance)
	num("MAX_HISTORY", &s.MaxHistory)
	num("MAX_PIXELS", &s.MaxPixels)
	str("LISTEN", &s.Listen)
	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)

	if len(errs) > 0 {
		return s, errors.Join(errs...)
	}
	return s, nil
}

// RegisterFlags binds the global flags to s. The current values of s become
// the flag defaults, so flags override the environment.
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.StoreDriver, "store", s.StoreDriver, "storage driver: sqlite, mysql, redis or memory")
	fs.StringVar(&s.SQLitePath, "sqlite-path", s.SQLitePath, "SQLite database file")
	fs.StringVar(&s.MySQLDSN, "mysql-dsn", s.MySQLDSN, "MySQL DSN (user:pass@tcp(host:port)/db?parseTime=true)")
	fs.StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "Redis address")
	fs.StringVar(&s.RedisPassword, "redis-password", s.RedisPassword, "Redis password")
	fs.IntVar(&s.RedisDB, "redis-db", s.RedisDB, "Redis database number")
	fs.StringVar(&s.RedisPrefix, "redis-prefix", s.RedisPrefix, "prefix for Redis keys")
	fs.IntVar(&s.BoundaryThreshold, "boundary-threshold", s.BoundaryThreshold, "pixels with mean RGB below this are outline (0-255)")
	fs.IntVar(&s.Tolerance, "tolerance", s.Tolerance, "per-channel anti-alias tolerance (0-255)")
	fs.IntVar(&s.MaxHistory, "max-history", s.MaxHistory, "undo depth")
	fs.IntVar(&s.MaxPixels, "max-pixels", s.MaxPixels, "largest accepted image, in pixels (width x height)")
	fs.StringVar(&s.Listen, "listen", s.Listen, "HTTP listen address for serve")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&s.LogFormat, "log-format", s.LogFormat, "log format: text or json")
}

// Validate checks ranges and required companions of the chosen driver.
func (s Settings) Validate() error {
	switch s.StoreDriver {
	case DriverSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("-sqlite-path is required for the sqlite store")
		}
	case DriverMySQL:
		if s.MySQLDSN == "" {
			return fmt.Errorf("-mysql-dsn is required for the mysql store")
		}
	case DriverRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("-redis-addr is required for the redis store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("-store must be sqlite, mysql, redis or memory, got %q", s.StoreDriver)
	}
	if s.BoundaryThreshold < 0 || s.BoundaryThreshold > 255 {
		return fmt.Errorf("-boundary-threshold must be between 0 and 255, got %d", s.BoundaryThreshold)
	}
	if s.Tolerance < 0 || s.Tolerance > 255 {
		return fmt.Errorf("-tolerance must be between 0 and 255, got %d", s.Tolerance)
	}
	if s.MaxHistory < 1 {
		return fmt.Errorf("-max-history must be >= 1, got %d", s.MaxHistory)
	}
	if s.MaxPixels < 1 {
		return fmt.Errorf("-max-pixels must be >= 1, got %d", s.MaxPixels)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("-log-format must be text or json, got %q", s.LogFormat)
	}
	return nil
}

// Classifier returns the boundary classifier configured by s.
func (s Settings) Classifier() detection.Classifier {
	return detection.Classifier{BoundaryThreshold: s.BoundaryThreshold, Tolerance: s.Tolerance}
}
