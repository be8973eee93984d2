// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wingedpig/sidecar/internal/events"
	"github.com/wingedpig/sidecar/internal/supervisor"
)

type stubBackend struct{}

func (stubBackend) Status() supervisor.Status {
	return supervisor.Status{State: supervisor.StatePolling}
}

func (stubBackend) Output(n int) []string { return []string{"Serving on :8000"} }

func TestNewRouter_Routes(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	defer bus.Close()

	r := NewRouter(Dependencies{Backend: stubBackend{}, EventBus: bus})

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{"GET", "/api/v1/status", http.StatusOK},
		{"GET", "/api/v1/output?lines=5", http.StatusOK},
		{"GET", "/api/v1/events", http.StatusOK},
		{"POST", "/api/v1/status", http.StatusMethodNotAllowed},
		{"DELETE", "/api/v1/output", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestNewRouter_NoEventBus(t *testing.T) {
	r := NewRouter(Dependencies{Backend: stubBackend{}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
