// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package ffmpeg

import (
	"errors"
	"fmt"
)

// ErrCancelled is wrapped by Execute when the context ends before ffmpeg
// exits cleanly.
var ErrCancelled = errors.New("transcode cancelled")

// ConfigError reports a command that cannot be run. No process was spawned.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid command: %s: %v", e.Reason, e.Err)
	}
	return "invalid command: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExecError reports an ffmpeg run that exited with a nonzero code. ffmpeg
// prints its fatal error as the last line, so LastLine is usually the cause.
type ExecError struct {
	Command  string
	ExitCode int
	LastLine string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("ffmpeg exited with code %d: %s (command: %s)", e.ExitCode, e.LastLine, e.Command)
}
