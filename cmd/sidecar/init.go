// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const initConfigFile = "sidecar.hjson"

type initAnswers struct {
	Title       string
	Port        int
	UseRunner   bool
	OpenBrowser bool
}

func initCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sidecar.hjson configuration file in the current directory",
		Long: `init writes a commented sidecar.hjson configuration file in the current
directory. It asks a few questions; press Enter to accept the defaults shown
in [brackets], or pass --yes to accept all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			return runInit(cwd, cmd.InOrStdin(), cmd.OutOrStdout(), yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept all defaults without prompting")
	return cmd
}

func runInit(dir string, in io.Reader, out io.Writer, yes bool) error {
	configFile := filepath.Join(dir, initConfigFile)

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", initConfigFile)
	}

	answers := initAnswers{
		Title:       filepath.Base(dir),
		Port:        8000,
		UseRunner:   true,
		OpenBrowser: true,
	}

	if !yes {
		reader := bufio.NewReader(in)

		fmt.Fprintln(out, "Sidecar Configuration Setup")
		fmt.Fprintln(out, "===========================")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Press Enter to accept defaults shown in [brackets].")
		fmt.Fprintln(out)

		answers.Title = prompt(reader, out, "Window title", answers.Title)

		portStr := prompt(reader, out, "Backend port", strconv.Itoa(answers.Port))
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port < 65536 {
			answers.Port = port
		}

		runner := prompt(reader, out, "Use uv for an isolated environment when available? (y/n)", "y")
		answers.UseRunner = strings.ToLower(runner) == "y"

		browser := prompt(reader, out, "Open the system browser on start? (y/n)", "y")
		answers.OpenBrowser = strings.ToLower(browser) == "y"
	}

	if err := os.WriteFile(configFile, []byte(generateConfig(answers)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created %s\n", configFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Review and edit sidecar.hjson as needed")
	fmt.Fprintln(out, "  2. Check the setup: sidecar doctor")
	fmt.Fprintln(out, "  3. Run: sidecar")
	fmt.Fprintln(out)

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(a initAnswers) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Sidecar Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  // Values may use {{.ExecutableDir}}, {{.ConfigDir}}, {{.WorkDir}}, {{.Home}}
  // and {{.TempDir}}.

  // ---------------------------------------------------------------------------
  // Backend
  // ---------------------------------------------------------------------------
  backend: {
    // Entry point searched in the resource directory, its packaged
    // subdirectory, then the current directory
    entry_name: "app.py"
    // resource_dir: "{{.ExecutableDir}}"
    packaged_subdir: "_up_"

    // Where the backend listens
    host: "localhost"
    port: `)
	sb.WriteString(strconv.Itoa(a.Port))
	sb.WriteString(`
    readiness_path: "/"
  }

  // ---------------------------------------------------------------------------
  // Runtime
  // ---------------------------------------------------------------------------
  runtime: {
    runner: "uv"
    interpreter: "python3"
    env_name: "sidecar-backend-venv"
    system_site_packages: true
    disable_runner: `)
	sb.WriteString(strconv.FormatBool(!a.UseRunner))
	sb.WriteString(`
  }

  // ---------------------------------------------------------------------------
  // Child environment
  // ---------------------------------------------------------------------------
  environment: {
    // PYTHONPATH entries are kept only if they mention one of these keywords
    // or live under one of these prefixes
    keep_keywords: ["ros"]
    keep_prefixes: ["/opt", "/usr"]

    // Extra variables for the backend
    // set: { BAG_DIR: "{{.Home}}/bags" }
  }

  // ---------------------------------------------------------------------------
  // Startup
  // ---------------------------------------------------------------------------
  readiness: {
    attempts: 30
    interval: "1s"
  }

  // ---------------------------------------------------------------------------
  // Window
  // ---------------------------------------------------------------------------
  window: {
    title: "`)
	sb.WriteString(escapeHJSONValue(a.Title))
	sb.WriteString(`"
    open_browser: `)
	sb.WriteString(strconv.FormatBool(a.OpenBrowser))
	sb.WriteString(`
    // Seconds a closed page has to come back before the backend is stopped
    destroy_grace: "3s"
  }

  logging: {
    level: "info"
    format: "console"
  }
}
`)

	return sb.String()
}
