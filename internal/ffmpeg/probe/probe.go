// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装
//
// Package probe reads media metadata with ffprobe.

package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Info is the subset of ffprobe output the runner needs.
type Info struct {
	Duration float64 `json:"duration_seconds"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// Prober returns media metadata for an input file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	Binary string
}

// New returns an FFprobe using binary, or "ffprobe" from PATH if empty.
func New(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{Binary: binary}
}

// Probe runs a single ffprobe JSON call against path.
func (p *FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseJSON(out)
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseJSON converts raw ffprobe JSON output into an Info. The container
// duration wins; the first stream that reports one is the fallback.
// Dimensions come from the first video stream.
func ParseJSON(data []byte) (Info, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	var info Info
	info.Duration = parseDuration(raw.Format.Duration)

	for _, s := range raw.Streams {
		if info.Duration == 0 {
			info.Duration = parseDuration(s.Duration)
		}
		if s.CodecType == "video" && info.Width == 0 {
			info.Width = s.Width
			info.Height = s.Height
		}
	}
	return info, nil
}

// parseDuration tolerates "N/A" and empty values.
func parseDuration(s string) float64 {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
