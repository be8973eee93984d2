// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no candidate entry point exists.
var ErrNotFound = errors.New("backend entry point not found")

// NotFoundError lists every candidate that was tried.
type NotFoundError struct {
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v (looked in: %s)", ErrNotFound, strings.Join(e.Candidates, ", "))
}

// Is makes errors.Is(err, ErrNotFound) work.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Resolver finds the backend entry point.
type Resolver struct {
	ResourceDir    string // Resource bundle root
	PackagedSubdir string // Packaging-specific subdirectory of ResourceDir
	WorkDir        string // Current working directory
	EntryName      string // e.g. app.py
}

// Candidates returns the entry point paths in priority order: the packaged
// resource root, its packaging subdirectory, then the working directory.
func (r *Resolver) Candidates() []string {
	var candidates []string
	if r.ResourceDir != "" {
		candidates = append(candidates, filepath.Join(r.ResourceDir, r.EntryName))
		if r.PackagedSubdir != "" {
			candidates = append(candidates, filepath.Join(r.ResourceDir, r.PackagedSubdir, r.EntryName))
		}
	}
	if r.WorkDir != "" {
		candidates = append(candidates, filepath.Join(r.WorkDir, r.EntryName))
	}
	return candidates
}

// Resolve returns the first candidate that exists as a regular file.
func (r *Resolver) Resolve() (Location, error) {
	candidates := r.Candidates()
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return Location{}, fmt.Errorf("resolve %s: %w", path, err)
		}
		return Location{EntryPath: abs, WorkDir: filepath.Dir(abs)}, nil
	}
	return Location{}, &NotFoundError{Candidates: candidates}
}

// ExecutableDir returns the directory of the running binary, following symlinks.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
