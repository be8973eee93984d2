// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// TemplateContext is the data available to {{ }} actions in config values.
type TemplateContext struct {
	ExecutableDir string // Directory of the running binary
	WorkDir       string // Current working directory
	ConfigDir     string // Directory of the loaded config file
	Home          string // User home directory
	TempDir       string // System temp directory
}

// NewTemplateContext builds a context from the running process.
func NewTemplateContext(configPath string) *TemplateContext {
	ctx := &TemplateContext{TempDir: os.TempDir()}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		ctx.ExecutableDir = filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		ctx.WorkDir = wd
	}
	if home, err := os.UserHomeDir(); err == nil {
		ctx.Home = home
	}
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			ctx.ConfigDir = filepath.Dir(abs)
		}
	}
	return ctx
}

// TemplateExpander handles Go text/template variable expansion in config values.
type TemplateExpander struct {
	funcMap template.FuncMap
}

// NewTemplateExpander creates a new template expander with built-in functions.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{
		funcMap: template.FuncMap{
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"default": DefaultString,
			"join":    filepath.Join,
			"env":     os.Getenv,
		},
	}
}

// Expand expands template variables in a string value.
func (e *TemplateExpander) Expand(value string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("").Funcs(e.funcMap).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ExpandConfig expands the path-like values of cfg. The result is a copy;
// cfg is not modified.
func (e *TemplateExpander) ExpandConfig(cfg *Config, ctx *TemplateContext) (*Config, error) {
	expanded := *cfg

	fields := []struct {
		name  string
		value *string
	}{
		{"backend.resource_dir", &expanded.Backend.ResourceDir},
		{"window.browser_cmd", &expanded.Window.BrowserCmd},
		{"logging.file", &expanded.Logging.File},
	}
	for _, f := range fields {
		v, err := e.Expand(*f.value, ctx)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", f.name, err)
		}
		*f.value = v
	}

	if len(cfg.Environment.Set) > 0 {
		expanded.Environment.Set = make(map[string]string, len(cfg.Environment.Set))
		for k, v := range cfg.Environment.Set {
			ev, err := e.Expand(v, ctx)
			if err != nil {
				return nil, fmt.Errorf("expanding environment.set.%s: %w", k, err)
			}
			expanded.Environment.Set[k] = ev
		}
	}

	return &expanded, nil
}

// DefaultString returns the value if non-empty, otherwise the default.
func DefaultString(defaultVal, value string) string {
	if value == "" {
		return defaultVal
	}
	return value
}
