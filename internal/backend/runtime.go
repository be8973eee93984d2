// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// EnvOutcome describes what happened to the isolated environment.
type EnvOutcome int

const (
	EnvNotUsed EnvOutcome = iota
	EnvExisting
	EnvCreated
	EnvCreateFailed
)

func (o EnvOutcome) String() string {
	switch o {
	case EnvNotUsed:
		return "not_used"
	case EnvExisting:
		return "existing"
	case EnvCreated:
		return "created"
	case EnvCreateFailed:
		return "create_failed"
	default:
		return "unknown"
	}
}

// EnvPrep reports the isolated environment preparation. A failed creation is
// not fatal: the runner materializes the environment on first use.
type EnvPrep struct {
	Outcome EnvOutcome
	Path    string
	Err     error
}

// CommandRunner runs a short-lived command to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Selector chooses between the isolated dependency runner and the bare interpreter.
type Selector struct {
	Runner             string // e.g. uv
	Interpreter        string // e.g. python3
	EnvDir             string // Fixed location of the isolated environment
	SystemSitePackages bool
	DisableRunner      bool

	LookPath func(file string) (string, error)
	Run      CommandRunner
}

// DefaultEnvDir returns the deterministic isolated environment location.
func DefaultEnvDir(name string) string {
	return filepath.Join(os.TempDir(), name)
}

// Select builds the invocation plan for loc, creating the isolated
// environment when the runner is used. It never fails.
func (s *Selector) Select(ctx context.Context, loc Location) (Plan, EnvPrep) {
	plan := s.Preview(loc)
	if !plan.Isolated() {
		return plan, EnvPrep{Outcome: EnvNotUsed}
	}
	return plan, s.prepareEnv(ctx)
}

// Preview returns the plan Select would build without touching the filesystem.
func (s *Selector) Preview(loc Location) Plan {
	if !s.runnerAvailable() {
		return Plan{
			Executable: s.Interpreter,
			Args:       []string{loc.EntryPath},
		}
	}
	return Plan{
		Executable: s.Runner,
		Args:       []string{"run", "--python", s.Interpreter, loc.EntryPath},
		EnvDir:     s.EnvDir,
		Env:        map[string]string{"VIRTUAL_ENV": s.EnvDir},
	}
}

func (s *Selector) runnerAvailable() bool {
	if s.DisableRunner || s.Runner == "" || s.EnvDir == "" {
		return false
	}
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(s.Runner)
	return err == nil
}

func (s *Selector) prepareEnv(ctx context.Context) EnvPrep {
	if _, err := os.Stat(s.EnvDir); err == nil {
		return EnvPrep{Outcome: EnvExisting, Path: s.EnvDir}
	} else if !errors.Is(err, os.ErrNotExist) {
		return EnvPrep{Outcome: EnvCreateFailed, Path: s.EnvDir, Err: fmt.Errorf("stat %s: %w", s.EnvDir, err)}
	}

	args := []string{"venv"}
	if s.SystemSitePackages {
		args = append(args, "--system-site-packages")
	}
	args = append(args, s.EnvDir)

	run := s.Run
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, s.Runner, args...); err != nil {
		return EnvPrep{Outcome: EnvCreateFailed, Path: s.EnvDir, Err: fmt.Errorf("%s %s: %w", s.Runner, strings.Join(args, " "), err)}
	}
	return EnvPrep{Outcome: EnvCreated, Path: s.EnvDir}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
