// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package supervisor

// waitExit returns immediately; the exit is only observed when the process
// is reaped.
func waitExit(pid int) error {
	return nil
}
