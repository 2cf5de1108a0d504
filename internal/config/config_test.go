// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Bind != ":8080" || cfg.FFmpeg.Path != "ffmpeg" {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: "127.0.0.1:9000"
ffmpeg:
  path: /usr/local/bin/ffmpeg
  niceness: 10
  grace_period_seconds: 2
  input:
    allow: ["^/media/"]
  output:
    block: ["^/etc/"]
jobs:
  max_concurrent: 4
metrics:
  enabled: false
log:
  debug: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Bind", cfg.Server.Bind, "127.0.0.1:9000"},
		{"Path", cfg.FFmpeg.Path, "/usr/local/bin/ffmpeg"},
		{"Probe", cfg.FFmpeg.Probe, "ffprobe"},
		{"LogLines", cfg.FFmpeg.LogLines, 100},
		{"GracePeriod", cfg.FFmpeg.GracePeriodDuration(), 2 * time.Second},
		{"MaxConcurrent", cfg.Jobs.MaxConcurrent, 4},
		{"Metrics.Enabled", cfg.Metrics.Enabled, false},
		{"Metrics.Path", cfg.Metrics.Path, "/metrics"},
		{"Debug", cfg.Log.Debug, true},
		{"Input.Allow", len(cfg.FFmpeg.Input.Allow), 1},
		{"Output.Block", len(cfg.FFmpeg.Output.Block), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if cfg.FFmpeg.Niceness == nil || *cfg.FFmpeg.Niceness != 10 {
		t.Errorf("Niceness = %v, want 10", cfg.FFmpeg.Niceness)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [\n"},
		{"niceness", "ffmpeg:\n  niceness: 40\n"},
		{"bad regexp", "ffmpeg:\n  input:\n    block: [\"(\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() error = nil")
			}
		})
	}
}
