package cli

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultSettingsAreValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	s, err := FromEnv(envMap(map[string]string{
		"VOROCAL_STORE":              "redis",
		"VOROCAL_REDIS_ADDR":         "cache:6380",
		"VOROCAL_REDIS_DB":           "3",
		"VOROCAL_TOLERANCE":          " 25 ",
		"VOROCAL_BOUNDARY_THRESHOLD": "80",
		"VOROCAL_LOG_FORMAT":         "json",
		"VOROCAL_MAX_PIXELS":         "1000000",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if s.StoreDriver != DriverRedis || s.RedisAddr != "cache:6380" || s.RedisDB != 3 {
		t.Errorf("redis settings not applied: %+v", s)
	}
	if s.Tolerance != 25 || s.BoundaryThreshold != 80 {
		t.Errorf("classifier settings not applied: %+v", s)
	}
	if s.MaxPixels != 1_000_000 {
		t.Errorf("max pixels = %d", s.MaxPixels)
	}
	if s.LogFormat != "json" {
		t.Errorf("log format = %q", s.LogFormat)
	}
	if s.Listen != DefaultSettings().Listen {
		t.Errorf("unset variables keep defaults, listen = %q", s.Listen)
	}
}

func TestFromEnv_BadNumber(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"VOROCAL_MAX_HISTORY": "lots"}))
	if err == nil || !strings.Contains(err.Error(), "VOROCAL_MAX_HISTORY") {
		t.Errorf("expected an error naming the variable, got %v", err)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	s, err := FromEnv(envMap(map[string]string{"VOROCAL_TOLERANCE": "25", "VOROCAL_STORE": "memory"}))
	if err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.RegisterFlags(fs)
	if err := fs.Parse([]string{"-tolerance", "10", "fill"}); err != nil {
		t.Fatal(err)
	}
	if s.Tolerance != 10 {
		t.Errorf("flag should win, tolerance = %d", s.Tolerance)
	}
	if s.StoreDriver != DriverMemory {
		t.Errorf("env should survive when no flag is given, store = %q", s.StoreDriver)
	}
	if fs.Arg(0) != "fill" {
		t.Errorf("remaining args = %v", fs.Args())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"unknown driver", func(s *Settings) { s.StoreDriver = "postgres" }, "-store"},
		{"mysql without dsn", func(s *Settings) { s.StoreDriver = DriverMySQL }, "-mysql-dsn"},
		{"redis without addr", func(s *Settings) { s.StoreDriver = DriverRedis; s.RedisAddr = "" }, "-redis-addr"},
		{"sqlite without path", func(s *Settings) { s.SQLitePath = "" }, "-sqlite-path"},
		{"threshold range", func(s *Settings) { s.BoundaryThreshold = 300 }, "-boundary-threshold"},
		{"tolerance range", func(s *Settings) { s.Tolerance = -1 }, "-tolerance"},
		{"history", func(s *Settings) { s.MaxHistory = 0 }, "-max-history"},
		{"pixel budget", func(s *Settings) { s.MaxPixels = 0 }, "-max-pixels"},
		{"log format", func(s *Settings) { s.LogFormat = "xml" }, "-log-format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestClassifier(t *testing.T) {
	s := DefaultSettings()
	s.BoundaryThreshold, s.Tolerance = 70, 12
	c := s.Classifier()
	if c.BoundaryThreshold != 70 || c.Tolerance != 12 {
		t.Errorf("classifier = %+v", c)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VOROCAL_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOROCAL_TEST_DOTENV", "")
	os.Unsetenv("VOROCAL_TEST_DOTENV")
	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("VOROCAL_TEST_DOTENV"); got != "from-file" {
		t.Errorf("VOROCAL_TEST_DOTENV = %q", got)
	}
}
