// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSanitizer() *Sanitizer {
	return &Sanitizer{
		SearchPathVar: "PYTHONPATH",
		HomeVar:       "PYTHONHOME",
		MountMarker:   "/tmp/.mount_",
		KeepKeywords:  []string{"ros"},
		KeepPrefixes:  []string{"/opt", "/usr"},
	}
}

func TestSanitizer_FiltersMountPoint(t *testing.T) {
	env := newTestSanitizer().Sanitize([]string{
		"PYTHONPATH=/opt/ros/lib:/tmp/.mount_Abc123/usr/lib:/opt/other",
		"PYTHONHOME=/tmp/.mount_Abc123/usr",
		"HOME=/home/dev",
	})

	assert.Equal(t, "/opt/ros/lib:/opt/other", env["PYTHONPATH"])
	_, hasHome := env["PYTHONHOME"]
	assert.False(t, hasHome)
	assert.Equal(t, "/home/dev", env["HOME"])
}

func TestSanitizer_FilterSearchPath(t *testing.T) {
	s := newTestSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"keeps ros anywhere", "/home/dev/ros2_ws/install/lib", "/home/dev/ros2_ws/install/lib"},
		{"keeps usr prefix", "/usr/lib/python3/dist-packages", "/usr/lib/python3/dist-packages"},
		{"drops mount even with ros", "/tmp/.mount_X/opt/ros/lib", ""},
		{"drops unrelated", "/home/dev/lib:/srv/py", ""},
		{"drops empty segments", "::/opt/a::", "/opt/a"},
		{"prefix must be a path boundary", "/optional/lib", ""},
		{"keeps order", "/usr/b:/home/x:/opt/a", "/usr/b:/opt/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.FilterSearchPath(tt.input))
		})
	}
}

func TestSanitizer_EmptyResultRemovesVariable(t *testing.T) {
	env := newTestSanitizer().Sanitize([]string{"PYTHONPATH=/tmp/.mount_Q/lib"})

	_, ok := env["PYTHONPATH"]
	assert.False(t, ok)
}

func TestSanitizer_UnsetSearchPathStaysUnset(t *testing.T) {
	env := newTestSanitizer().Sanitize([]string{"PATH=/usr/bin", "MALFORMED", "=nokey"})

	_, ok := env["PYTHONPATH"]
	assert.False(t, ok)
	assert.Equal(t, Environment{"PATH": "/usr/bin"}, env)
}

func TestEnvironment_WithAndEnviron(t *testing.T) {
	base := Environment{"B": "2", "A": "1"}
	merged := base.With(map[string]string{"A": "override", "C": "3"})

	assert.Equal(t, []string{"A=override", "B=2", "C=3"}, merged.Environ())
	assert.Equal(t, "1", base["A"], "With must not mutate the receiver")
}
