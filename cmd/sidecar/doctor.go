// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingedpig/sidecar/internal/app"
	"github.com/wingedpig/sidecar/internal/backend"
	"github.com/wingedpig/sidecar/internal/config"
)

func doctorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show how the backend would be located and launched",
		Long: `doctor prints the entry point candidates, the selected runtime and the
filtered interpreter search path without starting anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, err := loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			resourceDir := cfg.Backend.ResourceDir
			if resourceDir == "" {
				resourceDir, _ = backend.ExecutableDir()
			}
			return writeDiagnosis(cmd.OutOrStdout(), diagnosis{
				cfg:         cfg,
				configPath:  configPath,
				workDir:     wd,
				resourceDir: resourceDir,
				environ:     os.Environ(),
				lookPath:    exec.LookPath,
			})
		},
	}
}

type diagnosis struct {
	cfg         *config.Config
	configPath  string
	workDir     string
	resourceDir string
	environ     []string
	lookPath    func(string) (string, error)
}

// writeDiagnosis reports every setup decision. An unresolvable entry point is
// returned as the error after the report is written.
func writeDiagnosis(w io.Writer, d diagnosis) error {
	cfg := d.cfg

	if d.configPath != "" {
		fmt.Fprintf(w, "Config:      %s\n", d.configPath)
	} else {
		fmt.Fprintf(w, "Config:      (defaults)\n")
	}
	fmt.Fprintf(w, "Backend URL: %s\n", cfg.Backend.BaseURL())
	fmt.Fprintln(w)

	resolver := &backend.Resolver{
		ResourceDir:    d.resourceDir,
		PackagedSubdir: cfg.Backend.PackagedSubdir,
		WorkDir:        d.workDir,
		EntryName:      cfg.Backend.EntryName,
	}
	fmt.Fprintln(w, "Entry point candidates:")
	for i, c := range resolver.Candidates() {
		state := "missing"
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			state = "found"
		}
		fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, c, state)
	}

	loc, resolveErr := resolver.Resolve()
	if resolveErr != nil {
		fmt.Fprintf(w, "Resolved:    none\n")
	} else {
		fmt.Fprintf(w, "Resolved:    %s\n", loc.EntryPath)
		fmt.Fprintf(w, "Work dir:    %s\n", loc.WorkDir)
	}
	fmt.Fprintln(w)

	selector := app.NewSelector(cfg, d.lookPath, nil)
	if resolveErr != nil {
		loc = backend.Location{EntryPath: "<entry>"}
	}
	plan := selector.Preview(loc)
	fmt.Fprintf(w, "Command:     %s\n", strings.Join(plan.Command(), " "))
	if plan.Isolated() {
		state := "will be created"
		if _, err := os.Stat(plan.EnvDir); err == nil {
			state = "exists"
		}
		fmt.Fprintf(w, "Environment: %s (%s)\n", plan.EnvDir, state)
	} else {
		fmt.Fprintf(w, "Environment: system interpreter (%s not found or disabled)\n", cfg.Runtime.Runner)
	}
	fmt.Fprintln(w)

	sanitizer := app.NewSanitizer(cfg)
	env := sanitizer.Sanitize(d.environ)
	searchVar := cfg.Environment.SearchPathVar
	if filtered, ok := env[searchVar]; ok {
		fmt.Fprintf(w, "%s: %s\n", searchVar, filtered)
	} else {
		fmt.Fprintf(w, "%s: (unset)\n", searchVar)
	}
	for _, kv := range d.environ {
		if k, _, _ := strings.Cut(kv, "="); k == cfg.Environment.HomeVar {
			fmt.Fprintf(w, "%s: removed\n", k)
		}
	}

	return resolveErr
}
