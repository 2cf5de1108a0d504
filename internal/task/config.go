// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package task

import (
	"strings"

	"github.com/ZSC714725/ffrunner/internal/command"
)

// Config for a transcoding job. Zero values leave the matching ffmpeg
// option out.
type Config struct {
	ID           string   `json:"id"`
	Reference    string   `json:"reference"`
	Input        string   `json:"input"`
	Output       string   `json:"output"`
	Overwrite    bool     `json:"overwrite"`
	Format       string   `json:"format"`
	VideoCodec   string   `json:"video_codec"`
	AudioCodec   string   `json:"audio_codec"`
	VideoBitRate int64    `json:"video_bitrate"`
	AudioBitRate int64    `json:"audio_bitrate"`
	FrameRate    float64  `json:"frame_rate"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Threads      int      `json:"threads"`
	Start        float64  `json:"start_seconds"`
	Duration     float64  `json:"duration_seconds"`
	InputDelay   float64  `json:"input_delay_seconds"`
	VideoFilter  string   `json:"video_filter"`
	AudioFilter  string   `json:"audio_filter"`
	Preset       string   `json:"preset"`
	CRF          *int     `json:"crf"`
	NoAudio      bool     `json:"no_audio"`
	NoVideo      bool     `json:"no_video"`
	Options      []string `json:"options"`
	Niceness     *int     `json:"niceness"`
}

// CreateCommand builds the ffmpeg command from config. Input-side options
// come before -i, everything else after it.
func (c *Config) CreateCommand() command.Command {
	cmd := command.New()
	if c.Overwrite {
		cmd = cmd.Overwrite()
	}
	if c.Start > 0 {
		cmd = cmd.Seek(c.Start)
	}
	if c.InputDelay > 0 {
		cmd = cmd.InputDelay(c.InputDelay)
	}
	cmd = cmd.Input(c.Input)

	if c.Duration > 0 {
		cmd = cmd.Duration(c.Duration)
	}
	if c.Threads != 0 {
		cmd = cmd.Threads(c.Threads)
	}
	if c.VideoCodec != "" {
		cmd = cmd.VideoCodec(c.VideoCodec)
	}
	if c.AudioCodec != "" {
		cmd = cmd.AudioCodec(c.AudioCodec)
	}
	if c.VideoBitRate != 0 {
		cmd = cmd.VideoBitRate(c.VideoBitRate)
	}
	if c.AudioBitRate != 0 {
		cmd = cmd.AudioBitRate(c.AudioBitRate)
	}
	if c.FrameRate != 0 {
		cmd = cmd.FrameRate(c.FrameRate)
	}
	if c.Width != 0 || c.Height != 0 {
		cmd = cmd.Size(c.Width, c.Height)
	}
	if c.VideoFilter != "" {
		cmd = cmd.Filter(c.VideoFilter)
	}
	if c.AudioFilter != "" {
		cmd = cmd.AudioFilter(c.AudioFilter)
	}
	if c.Preset != "" {
		cmd = cmd.Preset(c.Preset)
	}
	if c.CRF != nil {
		cmd = cmd.CRF(*c.CRF)
	}
	if c.NoAudio {
		cmd = cmd.NoAudio()
	}
	if c.NoVideo {
		cmd = cmd.NoVideo()
	}
	if c.Format != "" {
		cmd = cmd.Format(c.Format)
	}
	cmd = appendOptions(cmd, c.Options)
	return cmd.Output(c.Output)
}

// Priority returns the per-job nice hint, unset if none was given.
func (c *Config) Priority() command.Priority {
	if c.Niceness == nil {
		return command.Priority{}
	}
	return command.Nice(*c.Niceness)
}

// appendOptions groups raw tokens into arguments: a token starting with "-"
// opens a new argument, following tokens are its values.
func appendOptions(cmd command.Command, options []string) command.Command {
	var flag string
	var values []command.Token
	flush := func() {
		if flag != "" {
			cmd = cmd.Option(flag, values...)
		}
		flag, values = "", nil
	}

	for _, o := range options {
		if strings.HasPrefix(o, "-") && len(o) > 1 {
			flush()
			flag = o
			continue
		}
		if flag == "" {
			// stray value without a flag
			cmd = cmd.Option(o)
			continue
		}
		values = append(values, command.Text(o))
	}
	flush()
	return cmd
}
