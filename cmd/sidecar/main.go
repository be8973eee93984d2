// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wingedpig/sidecar/internal/app"
	"github.com/wingedpig/sidecar/internal/config"
	"github.com/wingedpig/sidecar/internal/logging"
)

var (
	version = "0.1.0"
)

type rootOptions struct {
	configPath  string
	resourceDir string
	port        int
	noBrowser   bool
	debug       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sidecar",
		Short: "Run a local Python web backend behind a desktop window",
		Long: `sidecar finds the backend entry point (app.py), starts it with uv or the
system python3, waits for it to answer on http://localhost:8000 and shows it
in a browser window. Closing the window stops the backend.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: auto-detect)")
	root.PersistentFlags().StringVar(&opts.resourceDir, "resource-dir", "", "Resource bundle root (overrides config)")
	root.PersistentFlags().IntVar(&opts.port, "port", 0, "Backend port (overrides config)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Do not open the system browser")

	root.AddCommand(initCmd())
	root.AddCommand(doctorCmd(opts))
	root.AddCommand(versionCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sidecar %s\n", version)
		},
	}
}

// loadConfig finds, loads, expands and validates the configuration, applying
// command-line overrides. It returns the config file used, or "" for defaults.
func loadConfig(ctx context.Context, opts *rootOptions) (*config.Config, string, error) {
	loader := config.NewLoader()

	configPath := opts.configPath
	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		found, err := loader.FindConfig(wd)
		if err != nil {
			return nil, "", err
		}
		configPath = found
	}

	cfg, err := loader.LoadWithDefaults(ctx, configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err = config.NewTemplateExpander().ExpandConfig(cfg, config.NewTemplateContext(configPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to expand config: %w", err)
	}

	if opts.resourceDir != "" {
		cfg.Backend.ResourceDir = opts.resourceDir
	}
	if opts.port > 0 {
		cfg.Backend.Port = opts.port
	}
	if opts.noBrowser {
		open := false
		cfg.Window.OpenBrowser = &open
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func runShell(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, configPath, err := loadConfig(ctx, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, opts.debug)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	if configPath != "" {
		logger.Info("using config", zap.String("path", configPath))
	} else {
		logger.Info("no config file found; using defaults")
	}

	application, err := app.New(app.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Setup(ctx); err != nil {
		logger.Error("startup failed", zap.Error(err))
		application.Close()
		return err
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
