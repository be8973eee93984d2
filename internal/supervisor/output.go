// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "sync"

const defaultOutputLines = 1000

// OutputBuffer is a thread-safe ring buffer of the backend's output lines.
// It survives a readiness timeout so the operator can see why.
type OutputBuffer struct {
	mu       sync.RWMutex
	lines    []string
	capacity int
	size     int
	head     int // next write position
}

// NewOutputBuffer creates a buffer holding at most capacity lines.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = defaultOutputLines
	}
	return &OutputBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Write adds a single line.
func (b *OutputBuffer) Write(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Lines returns the last n lines, oldest first. n <= 0 returns everything.
func (b *OutputBuffer) Lines(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]string, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		out[i] = b.lines[(start+i)%b.capacity]
	}
	return out
}

// Size returns the number of buffered lines.
func (b *OutputBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
