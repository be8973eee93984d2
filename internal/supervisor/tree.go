// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// descendants returns every process below root, breadth first. The isolated
// runner forks the interpreter, so the backend is usually a grandchild.
func descendants(root int) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	children := make(map[int][]int)
	for _, p := range procs {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}

	var out []int
	queue := []int{root}
	seen := map[int]bool{root: true}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// killTree sends SIGKILL to the process group led by pid and to every
// descendant that moved to its own group. Descendants are collected before
// the leader is killed.
func killTree(pid int) ([]int, error) {
	var errs []error

	desc, err := descendants(pid)
	if err != nil {
		errs = append(errs, err)
	}

	killed := []int{pid}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		// Not a group leader (or the group is gone); fall back to the pid itself
		if err := unix.Kill(pid, unix.SIGKILL); err != nil {
			errs = append(errs, fmt.Errorf("kill %d: %w", pid, err))
		}
	}

	for _, d := range desc {
		err := unix.Kill(d, unix.SIGKILL)
		switch {
		case err == nil:
			killed = append(killed, d)
		case errors.Is(err, unix.ESRCH):
			// Already gone with the group
			killed = append(killed, d)
		default:
			errs = append(errs, fmt.Errorf("kill %d: %w", d, err))
		}
	}

	return killed, errors.Join(errs...)
}
