// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package process

import "time"

// Parser consumes process output line by line (e.g. FFmpeg stderr)
type Parser interface {
	// Reset is called once, right after the process has started.
	Reset(started time.Time)
	// Parse handles one line and reports whether it was a progress line.
	// Lines that are not progress become the run's last observed line.
	Parse(line string) bool
}

type nullParser struct{}

func (p *nullParser) Reset(time.Time)   {}
func (p *nullParser) Parse(string) bool { return false }
