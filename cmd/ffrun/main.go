// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode passes ffmpeg's own exit code through where there is one.
func exitCode(err error) int {
	var execErr *ffmpeg.ExecError
	switch {
	case errors.Is(err, ffmpeg.ErrCancelled):
		return 130
	case errors.As(err, &execErr) && execErr.ExitCode > 0 && execErr.ExitCode < 126:
		return execErr.ExitCode
	default:
		return 1
	}
}
