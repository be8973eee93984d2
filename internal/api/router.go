// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api provides the JSON endpoints served next to the shell window.
package api

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wingedpig/sidecar/internal/api/handlers"
	"github.com/wingedpig/sidecar/internal/api/middleware"
	"github.com/wingedpig/sidecar/internal/events"
)

const apiPrefix = "/api/v1"

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Backend  handlers.Backend
	EventBus events.EventBus
	Logger   *zap.Logger
}

// NewRouter creates a router with the global middleware and the API v1 routes.
// Callers add their own page routes to the returned router.
func NewRouter(deps Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(logger.Named("http")))
	r.Use(middleware.Recovery(logger.Named("http")))

	// API v1 routes. These sit on the root router so that a known path with
	// the wrong method answers 405.
	backendHandler := handlers.NewBackendHandler(deps.Backend)
	r.HandleFunc(apiPrefix+"/status", backendHandler.Status).Methods("GET")
	r.HandleFunc(apiPrefix+"/output", backendHandler.Output).Methods("GET")

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		r.HandleFunc(apiPrefix+"/events", eventHandler.History).Methods("GET")
	}

	return r
}
