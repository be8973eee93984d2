// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// Match checks if an event type matches a pattern.
// "backend.*" matches every backend event, "*.destroyed" matches any
// destroyed event, and "*" matches everything.
func Match(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}

	switch {
	case pattern == "*", pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(eventType, strings.TrimPrefix(pattern, "*"))
	}
	return false
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return errors.New("empty pattern")
	}
	if strings.Count(pattern, "*") > 1 {
		return errors.New("pattern may contain at most one wildcard")
	}
	return nil
}
