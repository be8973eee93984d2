// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package supervisor spawns the backend, waits for it to answer HTTP and
// kills it on shutdown.
package supervisor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSpawn matches every *SpawnError.
	ErrSpawn = errors.New("backend could not be launched")

	// ErrReadinessTimeout is returned when the backend never answered.
	// The process is left running.
	ErrReadinessTimeout = errors.New("backend did not become ready")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("backend supervisor already started")
)

// SpawnError wraps the failure to create the backend process.
type SpawnError struct {
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%v: %v: %v", ErrSpawn, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSpawn) work.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}

// State is the supervisor's lifecycle state.
type State int

const (
	StateUnstarted State = iota
	StateSpawning
	StateSpawnFailed
	StatePolling
	StateReady
	StateReadinessTimeout
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateSpawning:
		return "spawning"
	case StateSpawnFailed:
		return "spawn_failed"
	case StatePolling:
		return "polling"
	case StateReady:
		return "ready"
	case StateReadinessTimeout:
		return "readiness_timeout"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Status is a snapshot of the supervisor.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	Command   []string  `json:"command,omitempty"`
	WorkDir   string    `json:"work_dir,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Attempts  int       `json:"attempts"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	URL       string    `json:"url"`
}

// StopOutcome describes what Stop did.
type StopOutcome int

const (
	StopNoop StopOutcome = iota
	StopKilled
	StopKillFailed
)

func (o StopOutcome) String() string {
	switch o {
	case StopNoop:
		return "noop"
	case StopKilled:
		return "killed"
	case StopKillFailed:
		return "kill_failed"
	default:
		return "unknown"
	}
}

// StopResult reports a teardown. Kill failures are recorded, never returned.
type StopResult struct {
	Outcome StopOutcome
	PID     int
	Killed  []int // Every pid signalled, the leader first
	Err     error
}
