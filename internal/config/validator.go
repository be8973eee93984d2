// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity. Defaults should be applied first.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateBackend(cfg, errs)
	v.validateRuntime(cfg, errs)
	v.validateReadiness(cfg, errs)
	v.validateWindow(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateBackend(cfg *Config, errs *ValidationError) {
	if cfg.Backend.Port < 1 || cfg.Backend.Port > 65535 {
		errs.Add("backend.port", "must be between 1 and 65535")
	}
	if cfg.Backend.EntryName == "" {
		errs.Add("backend.entry_name", "is required")
	} else if filepath.Base(cfg.Backend.EntryName) != cfg.Backend.EntryName {
		errs.Add("backend.entry_name", "must be a file name, not a path")
	}
	if !strings.HasPrefix(cfg.Backend.ReadinessPath, "/") {
		errs.Add("backend.readiness_path", "must start with /")
	}
	if cfg.Backend.OutputLines < 0 {
		errs.Add("backend.output_lines", "must not be negative")
	}
}

func (v *Validator) validateRuntime(cfg *Config, errs *ValidationError) {
	if cfg.Runtime.Interpreter == "" {
		errs.Add("runtime.interpreter", "is required")
	}
	if strings.ContainsRune(cfg.Runtime.EnvName, filepath.Separator) {
		errs.Add("runtime.env_name", "must be a directory name, not a path")
	}
}

func (v *Validator) validateReadiness(cfg *Config, errs *ValidationError) {
	if cfg.Readiness.Attempts < 1 {
		errs.Add("readiness.attempts", "must be at least 1")
	}
	if cfg.Readiness.ProgressEvery < 1 {
		errs.Add("readiness.progress_every", "must be at least 1")
	}
}

func (v *Validator) validateWindow(cfg *Config, errs *ValidationError) {
	if cfg.Window.Port < 0 || cfg.Window.Port > 65535 {
		errs.Add("window.port", "must be between 0 and 65535")
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be json or console", cfg.Logging.Format))
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	durations := map[string]string{
		"readiness.interval":        cfg.Readiness.Interval,
		"readiness.request_timeout": cfg.Readiness.RequestTimeout,
		"window.destroy_grace":      cfg.Window.DestroyGrace,
		"watch.debounce":            cfg.Watch.Debounce,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs.Add(field, fmt.Sprintf("invalid duration '%s'", value))
			continue
		}
		if d < 0 {
			errs.Add(field, "must not be negative")
		}
	}
}
