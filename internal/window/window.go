// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package window hosts the shell window the backend UI is shown in.
package window

import "errors"

// ErrClosed is returned when navigating a window that has been closed.
var ErrClosed = errors.New("window is closed")

// Window is the surface the shell drives.
type Window interface {
	// Navigate points the window's content at url.
	Navigate(url string) error

	// Destroyed is closed exactly once, when the window goes away.
	Destroyed() <-chan struct{}

	// Close destroys the window. It is safe to call more than once.
	Close() error
}
