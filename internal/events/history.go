// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import "sync"

const defaultHistorySize = 500

// history keeps the most recent events in publish order.
type history struct {
	mu     sync.RWMutex
	events []Event
	max    int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = defaultHistorySize
	}
	return &history{max: max}
}

func (h *history) add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
}

func (h *history) query(filter EventFilter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Event, 0)
	for _, event := range h.events {
		if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
			continue
		}
		if len(filter.Types) > 0 && !matchAny(event.Type, filter.Types) {
			continue
		}
		result = append(result, event)
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

func matchAny(eventType string, patterns []string) bool {
	for _, p := range patterns {
		if Match(eventType, p) {
			return true
		}
	}
	return false
}
