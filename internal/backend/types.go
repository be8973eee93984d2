// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package backend locates the backend entry point and decides how to run it.
package backend

import (
	"sort"
)

// Location is where the backend entry point was found.
type Location struct {
	EntryPath string // Absolute path to the entry point
	WorkDir   string // Directory containing EntryPath
}

// Plan describes how to invoke the backend.
type Plan struct {
	Executable string
	Args       []string
	EnvDir     string            // Isolated dependency environment, empty for the bare interpreter
	Env        map[string]string // Variables the runner needs on top of the sanitized environment
}

// Isolated reports whether the plan runs inside an isolated environment.
func (p Plan) Isolated() bool {
	return p.EnvDir != ""
}

// Command returns the executable followed by its arguments.
func (p Plan) Command() []string {
	return append([]string{p.Executable}, p.Args...)
}

// Environment is the child's environment keyed by variable name.
type Environment map[string]string

// With returns a copy of e with overlay merged on top.
func (e Environment) With(overlay map[string]string) Environment {
	out := make(Environment, len(e)+len(overlay))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Environ renders the environment as sorted KEY=VALUE pairs for exec.Cmd.
func (e Environment) Environ() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
