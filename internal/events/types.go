// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events carries the shell's progress notifications.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Since time.Time // Events after this time
	Limit int       // Maximum events to return
}

// EventBus is the pub/sub system between the supervisor, watcher and window.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types
const (
	EventBackendResolved      = "backend.resolved"
	EventBackendEnvPrepared   = "backend.env_prepared"
	EventBackendSpawned       = "backend.spawned"
	EventBackendWaiting       = "backend.waiting"
	EventBackendReady         = "backend.ready"
	EventBackendTimeout       = "backend.timeout"
	EventBackendStopped       = "backend.stopped"
	EventBackendExited        = "backend.exited"
	EventBackendSourceChanged = "backend.source_changed"

	EventWindowNavigated = "window.navigated"
	EventWindowDestroyed = "window.destroyed"
)
