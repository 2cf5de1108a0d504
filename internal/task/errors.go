// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package task

import "errors"

var (
	ErrNotFound             = errors.New("job not found")
	ErrJobExists            = errors.New("job already exists")
	ErrInvalidConfig        = errors.New("invalid config: need an input and an output")
	ErrInvalidInputAddress  = errors.New("invalid input address")
	ErrInvalidOutputAddress = errors.New("invalid output address")
	ErrShuttingDown         = errors.New("store is shutting down")
)
