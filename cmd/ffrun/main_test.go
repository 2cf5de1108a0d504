// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "plain",
			args: []string{"/in.mp4", "/out.mkv"},
			want: "ffmpeg -i /in.mp4 /out.mkv",
		},
		{
			name: "full",
			args: []string{"-y", "--ss", "5.9", "-t", "8.7", "--vcodec", "libx264", "--crf", "23",
				"--size", "1280x720", "--an", "--option=-g 50", "-f", "matroska", "/in.mp4", "/out.mkv"},
			want: "ffmpeg -y -ss 00:00:05 -i /in.mp4 -t 00:00:08 -c:v libx264 -s 1280x720 -crf 23 -an -f matroska -g 50 /out.mkv",
		},
		{
			name: "negative offset",
			args: []string{"--itsoffset=-2.5", "/in.mp4", "/out.mkv"},
			want: "ffmpeg -itsoffset -00:00:02 -i /in.mp4 /out.mkv",
		},
		{
			name: "nice",
			args: []string{"--nice", "10", "--ffmpeg", "/opt/ffmpeg", "/in.mp4", "/out.mkv"},
			want: "nice -n 10 /opt/ffmpeg -i /in.mp4 /out.mkv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"--dry-run"}, tt.args...)...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("output =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad size", []string{"--size", "wide", "/in.mp4", "/out.mkv"}},
		{"zero size", []string{"--size", "0x720", "/in.mp4", "/out.mkv"}},
		{"negative bitrate", []string{"--vbitrate", "-5", "/in.mp4", "/out.mkv"}},
		{"niceness", []string{"--nice", "40", "/in.mp4", "/out.mkv"}},
		{"missing output", []string{"/in.mp4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, append([]string{"--dry-run"}, tt.args...)...); err == nil {
				t.Error("Execute() error = nil")
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{fmt.Errorf("%w: %w", ffmpeg.ErrCancelled, errors.New("context canceled")), 130},
		{&ffmpeg.ExecError{ExitCode: 2}, 2},
		{&ffmpeg.ExecError{ExitCode: 255}, 1},
		{&ffmpeg.ConfigError{Reason: "no input file"}, 1},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestProgressMonitor_Plain(t *testing.T) {
	var buf bytes.Buffer
	m := newProgressMonitor(&buf, false)

	m.OnLog("Stream mapping:")
	m.OnProgress(parse.Progress{Fraction: 0.5, Frame: 100, FPS: 25, Time: 4, Size: 1024000, BitRate: 2097200})
	// Within a second of the previous line and not final: dropped.
	m.OnProgress(parse.Progress{Fraction: 0.6, Frame: 120})
	m.OnProgress(parse.Progress{Fraction: 1, Frame: 200, Final: true, Time: 8, Size: 2048000})
	m.Finish(true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if want := "[ 50.0%] frame=100 fps=25.0 time=00:00:04 size=1.0 MB bitrate=2.1 Mbit/s"; lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[1], "[100.0%] frame=200 ") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if m.Last().Frame != 200 {
		t.Errorf("Last() = %+v", m.Last())
	}
}

func TestProgressMonitor_Verbose(t *testing.T) {
	var buf bytes.Buffer
	m := newProgressMonitor(&buf, true)
	m.OnLog("Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':")
	if !strings.Contains(buf.String(), "Input #0") {
		t.Errorf("output = %q", buf.String())
	}
}
