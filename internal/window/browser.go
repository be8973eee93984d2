// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"fmt"
	"os/exec"
	"strings"
)

// Launcher opens url in a browser.
type Launcher func(url string) error

// CommandLauncher returns a Launcher that runs command with the url appended.
// The command may carry its own arguments, e.g. "firefox --new-window".
func CommandLauncher(command string) Launcher {
	return func(url string) error {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return fmt.Errorf("no browser command configured")
		}
		cmd := exec.Command(fields[0], append(fields[1:], url)...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start %s: %w", fields[0], err)
		}
		// Reap without blocking; openers usually exit immediately
		go cmd.Wait()
		return nil
	}
}
