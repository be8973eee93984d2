// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON/YAML configuration loading for the sidecar shell.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for sidecar.
type Config struct {
	Version     string            `json:"version"`
	Backend     BackendConfig     `json:"backend"`
	Runtime     RuntimeConfig     `json:"runtime"`
	Environment EnvironmentConfig `json:"environment"`
	Readiness   ReadinessConfig   `json:"readiness"`
	Window      WindowConfig      `json:"window"`
	Watch       WatchConfig       `json:"watch"`
	Logging     LoggingConfig     `json:"logging"`
}

// BackendConfig describes where the backend lives and how to reach it.
type BackendConfig struct {
	EntryName      string `json:"entry_name"`      // Entry point file name (default app.py)
	ResourceDir    string `json:"resource_dir"`    // Resource bundle root (default: executable dir)
	PackagedSubdir string `json:"packaged_subdir"` // Packaging-specific subdirectory of the resource root
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ReadinessPath  string `json:"readiness_path"`
	OutputLines    int    `json:"output_lines"` // Captured stdout/stderr ring size
}

// BaseURL returns the backend's base address, e.g. http://localhost:8000.
func (b BackendConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// ReadinessURL returns the address polled during startup.
func (b BackendConfig) ReadinessURL() string {
	return b.BaseURL() + b.ReadinessPath
}

// RuntimeConfig selects how the backend is invoked.
type RuntimeConfig struct {
	Runner             string `json:"runner"`      // Isolated dependency runner looked up on PATH
	Interpreter        string `json:"interpreter"` // System interpreter
	EnvName            string `json:"env_name"`    // Isolated env directory name under the temp dir
	SystemSitePackages *bool  `json:"system_site_packages"`
	DisableRunner      bool   `json:"disable_runner"`
}

// IsSystemSitePackages reports whether the isolated env can see system packages.
func (r *RuntimeConfig) IsSystemSitePackages() bool {
	if r.SystemSitePackages == nil {
		return true
	}
	return *r.SystemSitePackages
}

// EnvironmentConfig controls child environment sanitizing.
type EnvironmentConfig struct {
	SearchPathVar string            `json:"search_path_var"` // PYTHONPATH
	HomeVar       string            `json:"home_var"`        // PYTHONHOME
	MountMarker   string            `json:"mount_marker"`    // Packaging runtime mount point marker
	KeepKeywords  []string          `json:"keep_keywords"`   // System integration namespaces (e.g. ros)
	KeepPrefixes  []string          `json:"keep_prefixes"`   // Generic system installation prefixes
	Set           map[string]string `json:"set"`             // Extra variables for the child
}

// ReadinessConfig bounds the startup poll.
type ReadinessConfig struct {
	Attempts       int    `json:"attempts"`
	Interval       string `json:"interval"`
	ProgressEvery  int    `json:"progress_every"`
	RequestTimeout string `json:"request_timeout"`
}

// WindowConfig configures the browser window host.
type WindowConfig struct {
	Title        string `json:"title"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	OpenBrowser  *bool  `json:"open_browser"`
	BrowserCmd   string `json:"browser_cmd"`
	DestroyGrace string `json:"destroy_grace"`
}

// IsOpenBrowser reports whether the system browser should be launched.
func (w *WindowConfig) IsOpenBrowser() bool {
	if w.OpenBrowser == nil {
		return true
	}
	return *w.OpenBrowser
}

// WatchConfig configures the entry point watcher.
type WatchConfig struct {
	Enabled  *bool  `json:"enabled"`
	Debounce string `json:"debounce"`
}

// IsEnabled returns whether the entry point should be watched.
func (w *WatchConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

// LoggingConfig configures the shell's own logging.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "console"
	File   string `json:"file"`
}

// ParseDuration parses a duration string, returning a default if empty.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
