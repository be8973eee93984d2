// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_HJSON(t *testing.T) {
	configContent := `{
		// comments are allowed
		version: "1"
		backend: {
			entry_name: server.py
			port: 9000,
			readiness_path: /health
		}
		environment: {
			keep_keywords: ["ros", "gazebo"]
		}
		readiness: {
			attempts: 10
			interval: 500ms
		}
	}`

	cfg := loadFromString(t, "sidecar.hjson", configContent)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "server.py", cfg.Backend.EntryName)
	assert.Equal(t, 9000, cfg.Backend.Port)
	assert.Equal(t, "/health", cfg.Backend.ReadinessPath)
	assert.Equal(t, []string{"ros", "gazebo"}, cfg.Environment.KeepKeywords)
	assert.Equal(t, 10, cfg.Readiness.Attempts)
	assert.Equal(t, "500ms", cfg.Readiness.Interval)
}

func TestLoader_Load_YAML(t *testing.T) {
	configContent := `
backend:
  port: 8123
runtime:
  runner: pipenv
  system_site_packages: false
window:
  open_browser: false
`

	cfg := loadFromString(t, "sidecar.yaml", configContent)

	assert.Equal(t, 8123, cfg.Backend.Port)
	assert.Equal(t, "pipenv", cfg.Runtime.Runner)
	assert.False(t, cfg.Runtime.IsSystemSitePackages())
	assert.False(t, cfg.Window.IsOpenBrowser())
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sidecar.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{ backend: { port: `), 0644))

	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse hjson")
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "/nonexistent/sidecar.hjson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_LoadWithDefaults_EmptyPath(t *testing.T) {
	cfg, err := NewLoader().LoadWithDefaults(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "app.py", cfg.Backend.EntryName)
	assert.Equal(t, "_up_", cfg.Backend.PackagedSubdir)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL())
	assert.Equal(t, "http://localhost:8000/", cfg.Backend.ReadinessURL())
	assert.Equal(t, "uv", cfg.Runtime.Runner)
	assert.Equal(t, "python3", cfg.Runtime.Interpreter)
	assert.True(t, cfg.Runtime.IsSystemSitePackages())
	assert.Equal(t, "PYTHONPATH", cfg.Environment.SearchPathVar)
	assert.Equal(t, "PYTHONHOME", cfg.Environment.HomeVar)
	assert.Equal(t, 30, cfg.Readiness.Attempts)
	assert.Equal(t, 5, cfg.Readiness.ProgressEvery)
	assert.Equal(t, time.Second, ParseDuration(cfg.Readiness.Interval, 0))
	assert.True(t, cfg.Watch.IsEnabled())
}

func TestLoader_LoadWithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := loadFromString(t, "sidecar.hjson", `{ readiness: { attempts: 3 }, environment: { keep_prefixes: [] } }`)
	ApplyDefaults(cfg)

	assert.Equal(t, 3, cfg.Readiness.Attempts)
	assert.Empty(t, cfg.Environment.KeepPrefixes)
	assert.Equal(t, []string{"ros"}, cfg.Environment.KeepKeywords)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()

	path, err := loader.FindConfig(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sidecar.yaml"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sidecar.hjson"), []byte("{}"), 0644))

	path, err = loader.FindConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "sidecar.hjson", filepath.Base(path))
	assert.True(t, filepath.IsAbs(path))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("bogus", 5*time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", 5*time.Second))
}

func loadFromString(t *testing.T, name, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}
