// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import "sync"

// ShutdownToken is a single-shot teardown signal. Its handler runs on the
// first Fire only.
type ShutdownToken struct {
	once    sync.Once
	done    chan struct{}
	handler func()
}

func newShutdownToken(handler func()) *ShutdownToken {
	return &ShutdownToken{
		done:    make(chan struct{}),
		handler: handler,
	}
}

// Fire runs the handler and reports whether this call was the one that did.
func (t *ShutdownToken) Fire() bool {
	fired := false
	t.once.Do(func() {
		fired = true
		if t.handler != nil {
			t.handler()
		}
		close(t.done)
	})
	return fired
}

// Done is closed after the handler has returned.
func (t *ShutdownToken) Done() <-chan struct{} {
	return t.done
}
