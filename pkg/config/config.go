// Package config loads the YAML file the trcarch command reads its
// defaults from.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML file. Relative paths are resolved by the caller.
type Config struct {
	Script    string           `yaml:"script"`
	Trace     string           `yaml:"trace"`
	Workers   int              `yaml:"workers"`
	Gas       int64            `yaml:"gas"`
	Query     string           `yaml:"query"`
	LogLevel  string           `yaml:"log_level"`
	Constants map[string]int64 `yaml:"constants"`
	Watch     Watch            `yaml:"watch"`
}

type Watch struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Defaults returns a configuration with every default filled in.
func Defaults() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// Load reads and normalizes the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes a YAML document. Unknown keys are an error.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return nil, err
	}
	if c.Workers < 0 || c.Gas < 0 {
		return nil, fmt.Errorf("config: workers and gas must not be negative")
	}
	c.normalize()
	return c, nil
}

func (c *Config) normalize() {
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 200 * time.Millisecond
	}
	if c.Constants == nil {
		c.Constants = make(map[string]int64)
	}
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel accepts debug, info, warn and error. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log_level %q: %w", s, err)
	}
	return l, nil
}
