// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the backend supervisor to the shell window.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/sidecar/internal/backend"
	"github.com/wingedpig/sidecar/internal/config"
	"github.com/wingedpig/sidecar/internal/events"
	"github.com/wingedpig/sidecar/internal/supervisor"
	"github.com/wingedpig/sidecar/internal/watcher"
	"github.com/wingedpig/sidecar/internal/window"
)

// ErrNotSetUp is returned by Run before a successful Setup.
var ErrNotSetUp = errors.New("app is not set up")

// Options holds configuration options for the app. Zero values use the
// process environment.
type Options struct {
	Config *config.Config
	Logger *zap.Logger

	Window      window.Window     // Defaults to a browser window host
	Prober      supervisor.Prober // Defaults to HTTP GET on the readiness URL
	Clock       supervisor.Clock  // Defaults to the wall clock
	LookPath    func(string) (string, error)
	RunCommand  backend.CommandRunner
	Environ     []string // Inherited environment; nil means os.Environ()
	WorkDir     string   // Defaults to the current directory
	ResourceDir string   // Overrides backend.resource_dir
}

// App is the application-state container. Setup wires its components and
// starts the backend; the window's destruction tears it down.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	environ []string

	bus        *events.MemoryEventBus
	resolver   *backend.Resolver
	selector   *backend.Selector
	sanitizer  *backend.Sanitizer
	supervisor *supervisor.Supervisor
	window     window.Window
	watcher    *watcher.EntryWatcher

	mu       sync.Mutex
	setUp    bool
	location backend.Location
	plan     backend.Plan
	envPrep  backend.EnvPrep
	stop     supervisor.StopResult

	shutdown  *ShutdownToken
	closeOnce sync.Once
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}

	resourceDir := opts.ResourceDir
	if resourceDir == "" {
		resourceDir = cfg.Backend.ResourceDir
	}
	if resourceDir == "" {
		dir, err := backend.ExecutableDir()
		if err != nil {
			logger.Warn("cannot determine resource directory; only the working directory is searched", zap.Error(err))
		}
		resourceDir = dir
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		environ: environ,
		bus: events.NewMemoryEventBus(events.MemoryBusConfig{
			Logger: logger,
		}),
	}

	app.resolver = &backend.Resolver{
		ResourceDir:    resourceDir,
		PackagedSubdir: cfg.Backend.PackagedSubdir,
		WorkDir:        workDir,
		EntryName:      cfg.Backend.EntryName,
	}
	app.selector = NewSelector(cfg, opts.LookPath, opts.RunCommand)
	app.sanitizer = NewSanitizer(cfg)

	prober := opts.Prober
	if prober == nil {
		timeout := config.ParseDuration(cfg.Readiness.RequestTimeout, 2*time.Second)
		prober = supervisor.NewHTTPProber(cfg.Backend.ReadinessURL(), timeout)
	}
	app.supervisor = supervisor.New(supervisor.Options{
		URL:           cfg.Backend.ReadinessURL(),
		Attempts:      cfg.Readiness.Attempts,
		Interval:      config.ParseDuration(cfg.Readiness.Interval, time.Second),
		ProgressEvery: cfg.Readiness.ProgressEvery,
		OutputLines:   cfg.Backend.OutputLines,
		Prober:        prober,
		Clock:         opts.Clock,
		Bus:           app.bus,
		Logger:        logger,
	})

	app.window = opts.Window
	if app.window == nil {
		app.window = window.NewHost(window.HostOptions{
			Title:        cfg.Window.Title,
			Host:         cfg.Window.Host,
			Port:         cfg.Window.Port,
			DestroyGrace: config.ParseDuration(cfg.Window.DestroyGrace, 3*time.Second),
			OpenBrowser:  cfg.Window.IsOpenBrowser(),
			Launch:       window.CommandLauncher(cfg.Window.BrowserCmd),
			Backend:      app.supervisor,
			Bus:          app.bus,
			Logger:       logger,
		})
	}

	app.shutdown = newShutdownToken(app.stopBackend)

	return app, nil
}

// NewSelector builds the runtime selector described by cfg.
func NewSelector(cfg *config.Config, lookPath func(string) (string, error), run backend.CommandRunner) *backend.Selector {
	return &backend.Selector{
		Runner:             cfg.Runtime.Runner,
		Interpreter:        cfg.Runtime.Interpreter,
		EnvDir:             backend.DefaultEnvDir(cfg.Runtime.EnvName),
		SystemSitePackages: cfg.Runtime.IsSystemSitePackages(),
		DisableRunner:      cfg.Runtime.DisableRunner,
		LookPath:           lookPath,
		Run:                run,
	}
}

// NewSanitizer builds the environment sanitizer described by cfg.
func NewSanitizer(cfg *config.Config) *backend.Sanitizer {
	return &backend.Sanitizer{
		SearchPathVar: cfg.Environment.SearchPathVar,
		HomeVar:       cfg.Environment.HomeVar,
		MountMarker:   cfg.Environment.MountMarker,
		KeepKeywords:  cfg.Environment.KeepKeywords,
		KeepPrefixes:  cfg.Environment.KeepPrefixes,
	}
}

// Setup locates and launches the backend, waits for it to answer, then opens
// the window and points it at the backend. Any error aborts the launch before
// a window is shown; after a readiness timeout the backend process is left
// running.
func (app *App) Setup(ctx context.Context) error {
	app.mu.Lock()
	if app.setUp {
		app.mu.Unlock()
		return errors.New("app is already set up")
	}
	app.mu.Unlock()

	loc, err := app.resolver.Resolve()
	if err != nil {
		app.logger.Error("backend entry point not found", zap.Error(err))
		return err
	}
	app.logger.Info("backend entry point", zap.String("path", loc.EntryPath), zap.String("workdir", loc.WorkDir))
	app.publish(events.EventBackendResolved, map[string]interface{}{
		"path":    loc.EntryPath,
		"workDir": loc.WorkDir,
	})

	plan, prep := app.selector.Select(ctx, loc)
	app.logEnvPrep(prep)
	app.publish(events.EventBackendEnvPrepared, map[string]interface{}{
		"outcome": prep.Outcome.String(),
		"path":    prep.Path,
	})

	env := app.sanitizer.Sanitize(app.environ).With(app.cfg.Environment.Set)

	app.mu.Lock()
	app.location = loc
	app.plan = plan
	app.envPrep = prep
	app.mu.Unlock()

	h, err := app.supervisor.Start(plan, loc, env)
	if err != nil {
		if h != nil {
			app.logger.Warn("backend left running after failed startup", zap.Int("pid", h.PID()))
		}
		return err
	}

	// The window is only shown once the backend answers
	if opener, ok := app.window.(interface{ Open(context.Context) error }); ok {
		if err := opener.Open(ctx); err != nil {
			return fmt.Errorf("failed to open window: %w", err)
		}
	}

	baseURL := app.cfg.Backend.BaseURL()
	if err := app.window.Navigate(baseURL); err != nil {
		return fmt.Errorf("failed to navigate window to %s: %w", baseURL, err)
	}

	if app.cfg.Watch.IsEnabled() {
		debounce := config.ParseDuration(app.cfg.Watch.Debounce, 200*time.Millisecond)
		w, err := watcher.NewEntryWatcher(loc.EntryPath, app.bus, debounce, app.logger)
		if err != nil {
			app.logger.Warn("entry point watcher disabled", zap.Error(err))
		} else {
			app.watcher = w
		}
	}

	app.mu.Lock()
	app.setUp = true
	app.mu.Unlock()

	go func() {
		<-app.window.Destroyed()
		app.shutdown.Fire()
	}()

	return nil
}

func (app *App) logEnvPrep(prep backend.EnvPrep) {
	switch prep.Outcome {
	case backend.EnvCreateFailed:
		app.logger.Warn("failed to create isolated environment; the runner will create it on first use",
			zap.String("path", prep.Path), zap.Error(prep.Err))
	case backend.EnvNotUsed:
		app.logger.Info("dependency runner not found; using the system interpreter",
			zap.String("interpreter", app.cfg.Runtime.Interpreter))
	default:
		app.logger.Info("isolated environment", zap.String("outcome", prep.Outcome.String()), zap.String("path", prep.Path))
	}
}

// Run blocks until the window is destroyed. Cancelling ctx closes the
// window, which in turn triggers the teardown.
func (app *App) Run(ctx context.Context) error {
	app.mu.Lock()
	setUp := app.setUp
	app.mu.Unlock()
	if !setUp {
		return ErrNotSetUp
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-app.shutdown.Done()
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			app.logger.Info("shutdown requested; closing window")
			if err := app.window.Close(); err != nil {
				app.logger.Warn("error closing window", zap.Error(err))
			}
		case <-app.shutdown.Done():
		}
		return nil
	})

	err := g.Wait()
	app.Close()
	return err
}

// Shutdown closes the window and waits for the backend teardown. It is safe
// to call any number of times.
func (app *App) Shutdown() supervisor.StopResult {
	if err := app.window.Close(); err != nil {
		app.logger.Warn("error closing window", zap.Error(err))
	}

	app.mu.Lock()
	setUp := app.setUp
	app.mu.Unlock()
	if !setUp {
		// No destroyed handler is registered to fire the token
		app.shutdown.Fire()
	}

	<-app.shutdown.Done()
	return app.StopResult()
}

// Close releases the watcher, window and event bus.
func (app *App) Close() {
	app.closeOnce.Do(func() {
		if app.watcher != nil {
			app.watcher.Close()
		}
		app.window.Close()
		app.bus.Close()
	})
}

// stopBackend is the shutdown token's only consumer.
func (app *App) stopBackend() {
	result := app.supervisor.Stop()

	app.mu.Lock()
	app.stop = result
	app.mu.Unlock()

	switch result.Outcome {
	case supervisor.StopKillFailed:
		app.logger.Warn("failed to stop backend", zap.Int("pid", result.PID), zap.Error(result.Err))
	case supervisor.StopKilled:
		app.logger.Info("backend stopped", zap.Int("pid", result.PID))
	default:
		app.logger.Debug("no backend to stop")
	}
}

func (app *App) publish(eventType string, payload map[string]interface{}) {
	app.bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload})
}

// Config returns the effective configuration.
func (app *App) Config() *config.Config { return app.cfg }

// EventBus returns the application event bus.
func (app *App) EventBus() events.EventBus { return app.bus }

// Supervisor returns the backend supervisor.
func (app *App) Supervisor() *supervisor.Supervisor { return app.supervisor }

// Window returns the shell window.
func (app *App) Window() window.Window { return app.window }

// Resolver returns the entry point resolver.
func (app *App) Resolver() *backend.Resolver { return app.resolver }

// ShutdownDone is closed once the backend teardown has run.
func (app *App) ShutdownDone() <-chan struct{} { return app.shutdown.Done() }

// Location returns the resolved entry point.
func (app *App) Location() backend.Location {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.location
}

// Plan returns the selected invocation plan.
func (app *App) Plan() backend.Plan {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.plan
}

// EnvPrep returns the isolated environment preparation outcome.
func (app *App) EnvPrep() backend.EnvPrep {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.envPrep
}

// StopResult returns the result of the teardown, zero before it ran.
func (app *App) StopResult() supervisor.StopResult {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.stop
}
