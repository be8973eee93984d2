// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wingedpig/sidecar/internal/backend"
	"github.com/wingedpig/sidecar/internal/events"
)

// fakeClock records sleeps without waiting.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// succeedOn returns a prober that fails until the nth call.
func succeedOn(n int, calls *int) Prober {
	return ProberFunc(func(ctx context.Context) error {
		*calls++
		if n > 0 && *calls >= n {
			return nil
		}
		return errors.New("connection refused")
	})
}

func newTestSupervisor(t *testing.T, prober Prober, clock Clock, bus events.EventBus) *Supervisor {
	t.Helper()
	sup := New(Options{
		URL:           "http://localhost:8000/",
		Attempts:      30,
		Interval:      time.Second,
		ProgressEvery: 5,
		Prober:        prober,
		Clock:         clock,
		Bus:           bus,
	})
	t.Cleanup(func() { sup.Stop() })
	return sup
}

func sleepPlan() backend.Plan {
	return backend.Plan{Executable: "sleep", Args: []string{"60"}}
}

func shPlan(script string) backend.Plan {
	return backend.Plan{Executable: "/bin/sh", Args: []string{"-c", script}}
}

func testLocation(t *testing.T) backend.Location {
	dir := t.TempDir()
	return backend.Location{EntryPath: filepath.Join(dir, "app.py"), WorkDir: dir}
}

func baseEnv() backend.Environment {
	return backend.Environment{"PATH": os.Getenv("PATH")}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped")
	}
}

func TestSupervisor_ReadyOnSeventhAttempt(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	sup := newTestSupervisor(t, succeedOn(7, &calls), clock, nil)

	h, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, 7, calls)
	require.Equal(t, 7, clock.count())
	for _, d := range clock.sleeps {
		assert.Equal(t, time.Second, d)
	}

	status := sup.Status()
	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, 7, status.Attempts)
	assert.Equal(t, h.PID(), status.PID)
	assert.Equal(t, []string{"sleep", "60"}, status.Command)
	assert.True(t, sup.Running())
}

func TestSupervisor_ReadyOnFirstAttempt(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), clock, nil)

	_, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.NoError(t, err)
	assert.Equal(t, 1, clock.count())
}

func TestSupervisor_ReadinessTimeout_LeavesProcessRunning(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	clock := &fakeClock{}
	calls := 0
	sup := newTestSupervisor(t, succeedOn(0, &calls), clock, bus)

	h, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 30, calls)
	assert.Equal(t, 30, clock.count())

	// Handle is retrievable and the process is alive
	require.NotNil(t, h)
	assert.Same(t, h, sup.Handle())
	assert.True(t, sup.Running())
	assert.NoError(t, unix.Kill(h.PID(), 0))
	assert.Equal(t, StateReadinessTimeout, sup.Status().State)

	waiting, err := bus.History(events.EventFilter{Types: []string{events.EventBackendWaiting}})
	require.NoError(t, err)
	require.Len(t, waiting, 6)
	for i, e := range waiting {
		assert.Equal(t, (i+1)*5, e.Payload["attempt"])
	}

	timeouts, err := bus.History(events.EventFilter{Types: []string{events.EventBackendTimeout}})
	require.NoError(t, err)
	assert.Len(t, timeouts, 1)

	// Teardown still works after a timeout
	result := sup.Stop()
	assert.Equal(t, StopKilled, result.Outcome)
	waitDone(t, h)
}

func TestSupervisor_SpawnError(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), clock, nil)

	plan := backend.Plan{Executable: "/nonexistent/sidecar-backend", Args: []string{"app.py"}}
	h, err := sup.Start(plan, testLocation(t), baseEnv())

	require.Error(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrSpawn)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, []string{"/nonexistent/sidecar-backend", "app.py"}, spawnErr.Command)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, 0, calls, "no readiness polling after a failed spawn")
	assert.Equal(t, StateSpawnFailed, sup.Status().State)
	assert.Nil(t, sup.Handle())
	assert.Equal(t, StopNoop, sup.Stop().Outcome)
}

func TestSupervisor_StartTwice(t *testing.T) {
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, nil)

	_, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.NoError(t, err)

	_, err = sup.Start(sleepPlan(), testLocation(t), baseEnv())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSupervisor_StopIdempotent(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, bus)

	h, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.NoError(t, err)

	first := sup.Stop()
	assert.Equal(t, StopKilled, first.Outcome)
	assert.Equal(t, h.PID(), first.PID)
	assert.Contains(t, first.Killed, h.PID())
	assert.NoError(t, first.Err)

	second := sup.Stop()
	assert.Equal(t, StopNoop, second.Outcome)

	waitDone(t, h)
	assert.Equal(t, StopNoop, sup.Stop().Outcome)
	assert.Equal(t, StateTerminated, sup.Status().State)
	assert.False(t, sup.Running())

	stopped, err := bus.History(events.EventFilter{Types: []string{events.EventBackendStopped}})
	require.NoError(t, err)
	assert.Len(t, stopped, 1)

	// A kill is not an external exit
	exited, err := bus.History(events.EventFilter{Types: []string{events.EventBackendExited}})
	require.NoError(t, err)
	assert.Empty(t, exited)
}

func TestSupervisor_StopBeforeStart(t *testing.T) {
	sup := New(Options{})
	assert.Equal(t, StopNoop, sup.Stop().Outcome)
	assert.Equal(t, StateUnstarted, sup.Status().State)
}

func TestSupervisor_ConcurrentStop(t *testing.T) {
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, nil)

	h, err := sup.Start(sleepPlan(), testLocation(t), baseEnv())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan StopResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- sup.Stop()
		}()
	}
	wg.Wait()
	close(results)

	killed := 0
	for r := range results {
		if r.Outcome == StopKilled {
			killed++
		}
	}
	assert.Equal(t, 1, killed)
	waitDone(t, h)
}

func TestSupervisor_ExternalExit(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, bus)

	h, err := sup.Start(shPlan("echo hello; printf partial; exit 3"), testLocation(t), baseEnv())
	require.NoError(t, err)
	waitDone(t, h)

	status := sup.Status()
	assert.Equal(t, StateTerminated, status.State)
	require.NotNil(t, status.ExitCode)
	assert.Equal(t, 3, *status.ExitCode)
	assert.Equal(t, []string{"hello", "partial"}, sup.Output(0))

	assert.Equal(t, StopNoop, sup.Stop().Outcome)

	exited, err := bus.History(events.EventFilter{Types: []string{events.EventBackendExited}})
	require.NoError(t, err)
	require.Len(t, exited, 1)
	assert.Equal(t, 3, exited[0].Payload["exitCode"])
}

func TestSupervisor_StopRacingExit(t *testing.T) {
	for i := 0; i < 20; i++ {
		calls := 0
		sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, nil)

		h, err := sup.Start(shPlan("exit 0"), testLocation(t), baseEnv())
		require.NoError(t, err)

		result := sup.Stop()
		assert.NotEqual(t, StopKillFailed, result.Outcome, "iteration %d: %v", i, result.Err)
		waitDone(t, h)
		assert.Equal(t, StopNoop, sup.Stop().Outcome)
	}
}

func TestSupervisor_EnvironmentAndWorkDir(t *testing.T) {
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, nil)

	loc := testLocation(t)
	env := baseEnv().With(map[string]string{"PYTHONPATH": "/opt/ros/lib"})
	plan := shPlan(`echo "PP=$PYTHONPATH"; echo "HOME=${PYTHONHOME:-unset}"; echo "VE=$VIRTUAL_ENV"; pwd`)
	plan.Env = map[string]string{"VIRTUAL_ENV": "/tmp/venv"}

	h, err := sup.Start(plan, loc, env)
	require.NoError(t, err)
	waitDone(t, h)

	wantDir, err := filepath.EvalSymlinks(loc.WorkDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"PP=/opt/ros/lib",
		"HOME=unset",
		"VE=/tmp/venv",
		wantDir,
	}, sup.Output(0))
}

func TestSupervisor_StopKillsProcessTree(t *testing.T) {
	calls := 0
	sup := newTestSupervisor(t, succeedOn(1, &calls), &fakeClock{}, nil)

	h, err := sup.Start(shPlan("sleep 60 & wait"), testLocation(t), baseEnv())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		desc, err := descendants(h.PID())
		return err == nil && len(desc) > 0
	}, 2*time.Second, 20*time.Millisecond)

	result := sup.Stop()
	assert.Equal(t, StopKilled, result.Outcome)
	assert.Greater(t, len(result.Killed), 1)
	waitDone(t, h)
}

func TestSupervisor_OutputCapturedAfterTimeout(t *testing.T) {
	calls := 0
	sup := New(Options{
		Attempts: 3,
		Prober:   succeedOn(0, &calls),
		Clock:    &fakeClock{},
	})
	t.Cleanup(func() { sup.Stop() })

	h, err := sup.Start(shPlan("echo 'Traceback: ImportError'; sleep 60"), testLocation(t), baseEnv())
	require.ErrorIs(t, err, ErrReadinessTimeout)
	require.NotNil(t, h)

	assert.Eventually(t, func() bool {
		return strings.Contains(strings.Join(sup.Output(10), "\n"), "ImportError")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateUnstarted:        "unstarted",
		StateSpawning:         "spawning",
		StateSpawnFailed:      "spawn_failed",
		StatePolling:          "polling",
		StateReady:            "ready",
		StateReadinessTimeout: "readiness_timeout",
		StateTerminated:       "terminated",
		State(99):             "unknown",
	} {
		assert.Equal(t, want, state.String())
		b, err := state.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%q", want), string(b))
	}
}
