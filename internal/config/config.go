// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path        string `yaml:"path"`
	Probe       string `yaml:"probe"`
	LogLines    int    `yaml:"log_lines"`
	GracePeriod uint64 `yaml:"grace_period_seconds"`
	// Niceness is the default `nice -n` value; nil runs ffmpeg unwrapped.
	Niceness *int         `yaml:"niceness"`
	Input    ffmpeg.Rules `yaml:"input"`
	Output   ffmpeg.Rules `yaml:"output"`
}

// JobsConfig 任务配置
type JobsConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// GracePeriodDuration returns the grace period as a time.Duration
func (c FFmpegConfig) GracePeriodDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{
			Path:        "ffmpeg",
			Probe:       "ffprobe",
			LogLines:    100,
			GracePeriod: 5,
		},
		Jobs:    JobsConfig{MaxConcurrent: 2},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fill()
	return cfg, cfg.Validate()
}

// fill 填充空值
func (c *Config) fill() {
	d := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = d.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = d.FFmpeg.Path
	}
	if c.FFmpeg.Probe == "" {
		c.FFmpeg.Probe = d.FFmpeg.Probe
	}
	if c.FFmpeg.LogLines <= 0 {
		c.FFmpeg.LogLines = d.FFmpeg.LogLines
	}
	if c.FFmpeg.GracePeriod == 0 {
		c.FFmpeg.GracePeriod = d.FFmpeg.GracePeriod
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = d.Jobs.MaxConcurrent
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if n := c.FFmpeg.Niceness; n != nil && (*n < -20 || *n > 19) {
		return fmt.Errorf("ffmpeg.niceness %d out of range [-20, 19]", *n)
	}
	if _, err := ffmpeg.NewValidator(c.FFmpeg.Input); err != nil {
		return fmt.Errorf("ffmpeg.input: %w", err)
	}
	if _, err := ffmpeg.NewValidator(c.FFmpeg.Output); err != nil {
		return fmt.Errorf("ffmpeg.output: %w", err)
	}
	return nil
}
