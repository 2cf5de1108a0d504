// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package command

import "strconv"

// Priority is an OS scheduling hint. The zero value means "unset".
type Priority struct {
	Niceness int
	set      bool
}

// Nice returns a priority that runs the process under `nice -n niceness`.
func Nice(niceness int) Priority {
	return Priority{Niceness: niceness, set: true}
}

// IsSet reports whether a niceness was given.
func (p Priority) IsSet() bool {
	return p.set
}

// Assemble returns the argv for running cmd with binary, prefixed with a
// nice wrapper when p is set.
func Assemble(binary string, cmd Command, p Priority) []string {
	tokens := cmd.Tokens()
	argv := make([]string, 0, len(tokens)+4)
	if p.IsSet() {
		argv = append(argv, "nice", "-n", strconv.Itoa(p.Niceness))
	}
	argv = append(argv, binary)
	return append(argv, tokens...)
}
