// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var received []Event
	_, err := bus.Subscribe("backend.*", func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventBackendReady}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventWindowDestroyed}))

	require.Len(t, received, 1)
	assert.Equal(t, EventBackendReady, received[0].Type)
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMemoryEventBus_SubscribeAsync(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count atomic.Int32
	_, err := bus.SubscribeAsync("*", func(_ context.Context, e Event) error {
		count.Add(1)
		return nil
	}, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: EventBackendWaiting}))
	}

	assert.Eventually(t, func() bool { return count.Load() == 3 }, time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	_, err := bus.Subscribe("*", func(_ context.Context, e Event) error {
		panic("boom")
	})
	require.NoError(t, err)

	var called bool
	_, err = bus.Subscribe("*", func(_ context.Context, e Event) error {
		called = true
		return errors.New("ignored")
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Type: EventBackendStopped})
	})
	assert.True(t, called)
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count int
	id, err := bus.Subscribe("*", func(_ context.Context, e Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(id))
	bus.Publish(context.Background(), Event{Type: EventBackendReady})

	assert.Equal(t, 0, count)
	assert.ErrorIs(t, bus.Unsubscribe(id), ErrSubscriptionNotFound)
}

func TestMemoryEventBus_History(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{HistorySize: 3})
	defer bus.Close()

	for _, typ := range []string{EventBackendResolved, EventBackendSpawned, EventBackendWaiting, EventBackendReady, EventWindowNavigated} {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: typ}))
	}

	all, err := bus.History(EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, EventBackendWaiting, all[0].Type)

	backend, err := bus.History(EventFilter{Types: []string{"backend.*"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, backend, 1)
	assert.Equal(t, EventBackendReady, backend[0].Type)
}

func TestMemoryEventBus_Closed(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: EventBackendReady}), ErrBusClosed)
	_, err := bus.Subscribe("*", func(context.Context, Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{"backend.ready", "*", true},
		{"backend.ready", "backend.ready", true},
		{"backend.ready", "backend.*", true},
		{"backendx.ready", "backend.*", false},
		{"window.destroyed", "*.destroyed", true},
		{"window.destroyed", "*.ready", false},
		{"backend.ready", "", false},
		{"", "*", false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType+"_"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.eventType, tt.pattern))
		})
	}
}

func TestSubscribe_InvalidPattern(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	_, err := bus.Subscribe("", func(context.Context, Event) error { return nil })
	assert.Error(t, err)
	_, err = bus.Subscribe("*.*", func(context.Context, Event) error { return nil })
	assert.Error(t, err)
}
