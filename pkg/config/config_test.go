package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agenthands/trcarch/pkg/config"
)

func TestParse(t *testing.T) {
	c, err := config.Parse([]byte(`
script: arch.c
trace: run.trc
workers: 4
gas: 100000
query: select(.kind == "step")
log_level: debug
constants:
  RAM_SIZE: 0x10000
  FLAGS: -1
watch:
  debounce: 50ms
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Script != "arch.c" || c.Trace != "run.trc" || c.Workers != 4 || c.Gas != 100000 {
		t.Errorf("got %+v", c)
	}
	if c.Query != `select(.kind == "step")` {
		t.Errorf("query = %q", c.Query)
	}
	if c.Constants["RAM_SIZE"] != 0x10000 || c.Constants["FLAGS"] != -1 {
		t.Errorf("constants = %v", c.Constants)
	}
	if c.Watch.Debounce != 50*time.Millisecond {
		t.Errorf("debounce = %v", c.Watch.Debounce)
	}
	if c.Level() != slog.LevelDebug {
		t.Errorf("level = %v", c.Level())
	}
}

func TestDefaults(t *testing.T) {
	for _, src := range []string{"", "script: a.c\n"} {
		c, err := config.Parse([]byte(src))
		if err != nil {
			t.Fatal(err)
		}
		if c.Workers != 1 || c.LogLevel != "info" || c.Watch.Debounce != 200*time.Millisecond || c.Constants == nil {
			t.Errorf("Parse(%q) = %+v", src, c)
		}
	}
	if d := config.Defaults(); d.Workers != 1 || d.Level() != slog.LevelInfo {
		t.Errorf("Defaults() = %+v", d)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "scripts: a.c\n"},
		{"bad level", "log_level: loud\n"},
		{"negative workers", "workers: -2\n"},
		{"bad duration", "watch:\n  debounce: soon\n"},
		{"not a map", "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Parse([]byte(tt.src)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trcarch.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Workers != 3 {
		t.Errorf("workers = %d", c.Workers)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}
