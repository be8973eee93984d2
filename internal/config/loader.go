// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFileNames are searched, in order, by FindConfig.
var DefaultFileNames = []string{
	"sidecar.hjson",
	"sidecar.json",
	"sidecar.yaml",
}

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
// YAML files are detected by extension; everything else is parsed as HJSON.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse hjson: %w", err)
		}
	}

	// Round-trip through JSON so the struct tags are the single source of truth
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
// An empty path yields the default configuration.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := l.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file in dir.
// It returns an empty path and no error when none exists; sidecar runs on defaults.
func (l *Loader) FindConfig(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return "", fmt.Errorf("config path %s is a directory", path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return path, nil
		}
		return abs, nil
	}
	return "", nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for missing config fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}

	// Backend defaults
	if cfg.Backend.EntryName == "" {
		cfg.Backend.EntryName = "app.py"
	}
	if cfg.Backend.PackagedSubdir == "" {
		cfg.Backend.PackagedSubdir = "_up_"
	}
	if cfg.Backend.Host == "" {
		cfg.Backend.Host = "localhost"
	}
	if cfg.Backend.Port == 0 {
		cfg.Backend.Port = 8000
	}
	if cfg.Backend.ReadinessPath == "" {
		cfg.Backend.ReadinessPath = "/"
	}
	if cfg.Backend.OutputLines == 0 {
		cfg.Backend.OutputLines = 1000
	}

	// Runtime defaults
	if cfg.Runtime.Runner == "" {
		cfg.Runtime.Runner = "uv"
	}
	if cfg.Runtime.Interpreter == "" {
		cfg.Runtime.Interpreter = "python3"
	}
	if cfg.Runtime.EnvName == "" {
		cfg.Runtime.EnvName = "sidecar-backend-venv"
	}

	// Environment defaults
	if cfg.Environment.SearchPathVar == "" {
		cfg.Environment.SearchPathVar = "PYTHONPATH"
	}
	if cfg.Environment.HomeVar == "" {
		cfg.Environment.HomeVar = "PYTHONHOME"
	}
	if cfg.Environment.MountMarker == "" {
		cfg.Environment.MountMarker = "/tmp/.mount_"
	}
	if cfg.Environment.KeepKeywords == nil {
		cfg.Environment.KeepKeywords = []string{"ros"}
	}
	if cfg.Environment.KeepPrefixes == nil {
		cfg.Environment.KeepPrefixes = []string{"/opt", "/usr"}
	}

	// Readiness defaults
	if cfg.Readiness.Attempts == 0 {
		cfg.Readiness.Attempts = 30
	}
	if cfg.Readiness.Interval == "" {
		cfg.Readiness.Interval = "1s"
	}
	if cfg.Readiness.ProgressEvery == 0 {
		cfg.Readiness.ProgressEvery = 5
	}
	if cfg.Readiness.RequestTimeout == "" {
		cfg.Readiness.RequestTimeout = "2s"
	}

	// Window defaults
	if cfg.Window.Title == "" {
		cfg.Window.Title = "sidecar"
	}
	if cfg.Window.Host == "" {
		cfg.Window.Host = "127.0.0.1"
	}
	if cfg.Window.BrowserCmd == "" {
		cfg.Window.BrowserCmd = "xdg-open"
	}
	if cfg.Window.DestroyGrace == "" {
		cfg.Window.DestroyGrace = "3s"
	}

	// Watch defaults
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "200ms"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
