// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"

	"github.com/wingedpig/sidecar/internal/supervisor"
)

const (
	defaultOutputLines = 100
	maxOutputLines     = 10000
)

// Backend is the read-only view of the supervised backend.
type Backend interface {
	Status() supervisor.Status
	Output(n int) []string
}

// BackendHandler serves backend status and captured output.
type BackendHandler struct {
	backend Backend
}

// NewBackendHandler creates a new backend handler.
func NewBackendHandler(backend Backend) *BackendHandler {
	return &BackendHandler{backend: backend}
}

// Status returns the supervisor state.
func (h *BackendHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrUnavailable, "backend is not configured")
		return
	}
	WriteJSON(w, http.StatusOK, h.backend.Status())
}

// OutputResponse is the payload of the output endpoint.
type OutputResponse struct {
	Lines []string `json:"lines"`
}

// Output returns the most recent backend output lines.
func (h *BackendHandler) Output(w http.ResponseWriter, r *http.Request) {
	if h.backend == nil {
		WriteError(w, http.StatusServiceUnavailable, ErrUnavailable, "backend is not configured")
		return
	}

	n := defaultOutputLines
	if s := r.URL.Query().Get("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "lines must be a non-negative integer")
			return
		}
		n = min(v, maxOutputLines)
	}

	lines := h.backend.Output(n)
	if lines == nil {
		lines = []string{}
	}
	WriteJSON(w, http.StatusOK, OutputResponse{Lines: lines})
}
