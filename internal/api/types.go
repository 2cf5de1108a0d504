// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package api

import (
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffrunner/internal/task"
)

// Job represents a job in API responses
type Job struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Reference string       `json:"reference"`
	CreatedAt int64        `json:"created_at"`
	UpdatedAt int64        `json:"updated_at"`
	Config    *task.Config `json:"config,omitempty"`
	State     *JobState    `json:"state,omitempty"`
	Report    *JobReport   `json:"report,omitempty"`
}

// JobState for API
type JobState struct {
	State    string    `json:"exec"`
	Pid      int       `json:"pid"`
	Runtime  int64     `json:"runtime_seconds"`
	LastLog  string    `json:"last_logline"`
	Progress *Progress `json:"progress"`
	Memory   uint64    `json:"memory_bytes"`
	CPU      float64   `json:"cpu_usage"`
	Command  []string  `json:"command"`
	ExitCode *int      `json:"exit_code,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Progress from the ffmpeg status line
type Progress struct {
	Fraction float64 `json:"fraction"`
	Frame    uint64  `json:"frame"`
	FPS      float64 `json:"fps"`
	Quality  float64 `json:"q"`
	Final    bool    `json:"final"`
	Size     uint64  `json:"size_bytes"`
	Time     float64 `json:"time_seconds"`
	BitRate  float64 `json:"bitrate_bps"`
	Elapsed  float64 `json:"elapsed_seconds"`
}

// JobReport holds the retained log
type JobReport struct {
	CreatedAt int64       `json:"created_at"`
	Log       [][2]string `json:"log"`
}

// CommandRequest for job commands
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// About describes the ffmpeg binary in use
type About struct {
	Binary   string              `json:"binary"`
	FFmpeg   skills.Version      `json:"ffmpeg"`
	Encoders map[string][]string `json:"encoders"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
