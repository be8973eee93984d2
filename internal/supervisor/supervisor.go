// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wingedpig/sidecar/internal/backend"
	"github.com/wingedpig/sidecar/internal/events"
)

const (
	defaultAttempts      = 30
	defaultInterval      = time.Second
	defaultProgressEvery = 5
	defaultWaitDelay     = 2 * time.Second
	maxLineLen           = 64 * 1024
)

// Options configures a Supervisor.
type Options struct {
	URL           string        // Readiness address, reported in status
	Attempts      int           // Readiness attempts before giving up
	Interval      time.Duration // Wait before each attempt
	ProgressEvery int           // Emit a progress notification every n failed attempts
	OutputLines   int           // Captured output ring size

	Prober Prober
	Clock  Clock
	Bus    events.EventBus
	Logger *zap.Logger
}

// Handle is the live backend process. It is owned by its Supervisor, whose
// mutex guards the exited and terminated flags and the exit code.
type Handle struct {
	cmd       *exec.Cmd
	pid       int
	command   []string
	workDir   string
	startedAt time.Time
	done      chan struct{}
	streams   []*lineWriter

	exited     bool // Exited but possibly not yet reaped
	terminated bool
	exitCode   *int
}

// PID returns the process id.
func (h *Handle) PID() int { return h.pid }

// Command returns the launched command line.
func (h *Handle) Command() []string { return append([]string(nil), h.command...) }

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Supervisor owns the single backend process for the shell's lifetime.
type Supervisor struct {
	opts   Options
	logger *zap.Logger
	output *OutputBuffer

	mu       sync.Mutex
	state    State
	handle   *Handle
	attempts int
}

// New creates a supervisor. Zero options take the documented defaults.
func New(opts Options) *Supervisor {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Prober == nil {
		opts.Prober = NewHTTPProber(opts.URL, 2*time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Supervisor{
		opts:   opts,
		logger: opts.Logger.Named("supervisor"),
		output: NewOutputBuffer(opts.OutputLines),
		state:  StateUnstarted,
	}
}

// Start spawns the backend and blocks until it answers or the attempts run
// out. On ErrReadinessTimeout the handle is still returned and the process
// keeps running. Start may only be called once.
func (s *Supervisor) Start(plan backend.Plan, loc backend.Location, env backend.Environment) (*Handle, error) {
	s.mu.Lock()
	if s.state != StateUnstarted {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.state = StateSpawning
	s.mu.Unlock()

	h, err := s.spawn(plan, loc, env)
	if err != nil {
		s.setState(StateSpawnFailed)
		s.logger.Error("backend failed to launch", zap.Strings("command", plan.Command()), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.handle = h
	s.state = StatePolling
	s.mu.Unlock()

	s.logger.Info("backend started",
		zap.Int("pid", h.pid),
		zap.Strings("command", h.command),
		zap.String("workdir", h.workDir))
	s.publish(events.EventBackendSpawned, map[string]interface{}{
		"pid":     h.pid,
		"command": h.command,
	})

	go s.wait(h)

	if err := s.pollReadiness(); err != nil {
		return h, err
	}
	return h, nil
}

func (s *Supervisor) spawn(plan backend.Plan, loc backend.Location, env backend.Environment) (*Handle, error) {
	command := plan.Command()

	cmd := exec.Command(plan.Executable, plan.Args...)
	cmd.Dir = loc.WorkDir
	cmd.Env = env.With(plan.Env).Environ()
	stdout, stderr := s.lineWriter("stdout"), s.lineWriter("stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = defaultWaitDelay

	// New process group so teardown reaches the interpreter the runner forks
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	return &Handle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		command:   command,
		workDir:   loc.WorkDir,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		streams:   []*lineWriter{stdout, stderr},
	}, nil
}

// pollReadiness waits Interval before every attempt. It is not cancellable.
func (s *Supervisor) pollReadiness() error {
	s.logger.Info("waiting for backend to start", zap.String("url", s.opts.URL))

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		s.opts.Clock.Sleep(s.opts.Interval)

		s.mu.Lock()
		s.attempts = attempt
		s.mu.Unlock()

		err := s.opts.Prober.Probe(context.Background())
		if err == nil {
			s.mu.Lock()
			exited := s.state == StateTerminated
			if s.state == StatePolling {
				s.state = StateReady
			}
			s.mu.Unlock()

			if exited {
				s.logger.Warn("backend exited before readiness, but the address answered", zap.String("url", s.opts.URL))
			}
			s.logger.Info("backend is ready", zap.Int("attempts", attempt))
			s.publish(events.EventBackendReady, map[string]interface{}{
				"attempts": attempt,
				"url":      s.opts.URL,
			})
			return nil
		}
		lastErr = err

		if attempt%s.opts.ProgressEvery == 0 {
			s.logger.Info(fmt.Sprintf("still waiting for backend (%d/%d)", attempt, s.opts.Attempts), zap.Error(err))
			s.publish(events.EventBackendWaiting, map[string]interface{}{
				"attempt": attempt,
				"max":     s.opts.Attempts,
			})
		}
	}

	s.mu.Lock()
	if s.state == StatePolling {
		s.state = StateReadinessTimeout
	}
	s.mu.Unlock()

	s.logger.Error("backend failed to start in time; leaving it running for diagnosis",
		zap.Int("attempts", s.opts.Attempts),
		zap.Error(lastErr))
	s.publish(events.EventBackendTimeout, map[string]interface{}{
		"attempts": s.opts.Attempts,
		"url":      s.opts.URL,
	})

	return fmt.Errorf("%w after %d attempts at %s: %v", ErrReadinessTimeout, s.opts.Attempts, s.opts.URL, lastErr)
}

// wait reaps the process and records an external exit. The exit is marked
// before the process is reaped so Stop never signals a recycled pid.
func (s *Supervisor) wait(h *Handle) {
	if err := waitExit(h.pid); err != nil {
		s.logger.Debug("waiting for backend exit", zap.Int("pid", h.pid), zap.Error(err))
	}
	s.mu.Lock()
	h.exited = true
	s.mu.Unlock()

	err := h.cmd.Wait()
	for _, w := range h.streams {
		w.flush()
	}

	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	s.mu.Lock()
	killed := h.terminated
	h.terminated = true
	h.exitCode = &code
	if s.handle == h {
		s.state = StateTerminated
	}
	s.mu.Unlock()

	close(h.done)

	if killed {
		return
	}
	s.logger.Warn("backend exited", zap.Int("pid", h.pid), zap.Int("exit_code", code))
	s.publish(events.EventBackendExited, map[string]interface{}{
		"pid":      h.pid,
		"exitCode": code,
	})
}

// Stop kills the backend process tree if it is running. It is idempotent and
// never fails; kill errors are reported in the result.
func (s *Supervisor) Stop() StopResult {
	s.mu.Lock()
	h := s.handle
	if h == nil || h.terminated || h.exited {
		s.mu.Unlock()
		return StopResult{Outcome: StopNoop}
	}

	// Still unreaped while the lock is held, so the pid is ours
	killed, err := killTree(h.pid)
	h.terminated = true
	s.state = StateTerminated
	s.mu.Unlock()

	result := StopResult{Outcome: StopKilled, PID: h.pid, Killed: killed}
	if err != nil {
		result.Outcome = StopKillFailed
		result.Err = err
		s.logger.Warn("backend kill reported errors", zap.Int("pid", h.pid), zap.Error(err))
	} else {
		s.logger.Info("backend stopped", zap.Int("pid", h.pid), zap.Ints("killed", killed))
	}
	s.publish(events.EventBackendStopped, map[string]interface{}{
		"pid":     h.pid,
		"outcome": result.Outcome.String(),
	})
	return result
}

// Handle returns the process handle, or nil if nothing was spawned.
func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Running reports whether a spawned process has not yet terminated.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && !s.handle.terminated
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:    s.state,
		Attempts: s.attempts,
		URL:      s.opts.URL,
	}
	if h := s.handle; h != nil {
		st.PID = h.pid
		st.Command = append([]string(nil), h.command...)
		st.WorkDir = h.workDir
		st.StartedAt = h.startedAt
		if h.exitCode != nil {
			code := *h.exitCode
			st.ExitCode = &code
		}
	}
	return st
}

// Output returns the last n lines the backend wrote.
func (s *Supervisor) Output(n int) []string {
	return s.output.Lines(n)
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) publish(eventType string, payload map[string]interface{}) {
	if s.opts.Bus == nil {
		return
	}
	s.opts.Bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload})
}

// lineWriter splits the backend's output into lines for the buffer and log.
func (s *Supervisor) lineWriter(stream string) *lineWriter {
	return &lineWriter{
		stream: stream,
		output: s.output,
		logger: s.opts.Logger.Named("backend"),
	}
}

type lineWriter struct {
	stream  string
	output  *OutputBuffer
	logger  *zap.Logger
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	if len(w.partial) > maxLineLen {
		w.emit(w.partial)
		w.partial = nil
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline. Only safe after Wait.
func (w *lineWriter) flush() {
	if len(w.partial) > 0 {
		w.emit(w.partial)
		w.partial = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	line := string(bytes.TrimSuffix(b, []byte("\r")))
	w.output.Write(line)
	w.logger.Info(line, zap.String("stream", w.stream))
}
