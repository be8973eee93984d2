// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"os"
	"path/filepath"
	"strings"
)

// Sanitizer derives the child environment from the shell's own environment.
// Packaged builds (AppImage) inject interpreter paths under their mount point
// that break the system interpreter.
type Sanitizer struct {
	SearchPathVar string   // Module search path variable, PYTHONPATH
	HomeVar       string   // Interpreter home redirect, PYTHONHOME
	MountMarker   string   // Substring identifying the packaging mount point
	KeepKeywords  []string // Segments containing any of these are kept
	KeepPrefixes  []string // Segments under any of these prefixes are kept
}

// Sanitize returns the child environment for the given inherited KEY=VALUE list.
func (s *Sanitizer) Sanitize(inherited []string) Environment {
	env := make(Environment, len(inherited))
	for _, kv := range inherited {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}

	delete(env, s.HomeVar)

	if value, ok := env[s.SearchPathVar]; ok {
		filtered := s.FilterSearchPath(value)
		if filtered == "" {
			delete(env, s.SearchPathVar)
		} else {
			env[s.SearchPathVar] = filtered
		}
	}

	return env
}

// FilterSearchPath keeps only the segments of a path list that point at
// system integrations, dropping anything under the packaging mount point.
func (s *Sanitizer) FilterSearchPath(value string) string {
	sep := string(os.PathListSeparator)
	var kept []string
	for _, segment := range strings.Split(value, sep) {
		if s.keep(segment) {
			kept = append(kept, segment)
		}
	}
	return strings.Join(kept, sep)
}

func (s *Sanitizer) keep(segment string) bool {
	if segment == "" {
		return false
	}
	if s.MountMarker != "" && strings.Contains(segment, s.MountMarker) {
		return false
	}
	for _, kw := range s.KeepKeywords {
		if kw != "" && strings.Contains(segment, kw) {
			return true
		}
	}
	clean := filepath.Clean(segment)
	for _, prefix := range s.KeepPrefixes {
		prefix = filepath.Clean(prefix)
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
