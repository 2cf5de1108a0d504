// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package skills

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// Library represents a linked av library
type Library struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// Version is what `ffmpeg -version` reports
type Version struct {
	Version       string    `json:"version"`
	Compiler      string    `json:"compiler"`
	Configuration string    `json:"configuration"`
	Libraries     []Library `json:"libraries"`
}

// Skills are the detected capabilities of FFmpeg that the runner checks
// commands against.
type Skills struct {
	FFmpeg   Version         `json:"ffmpeg"`
	Encoders map[string]Kind `json:"encoders"`
}

// Kind is the media type an encoder produces.
type Kind string

const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindSubtitle Kind = "subtitle"
)

// HasEncoder reports whether name is a known encoder. "copy" is always
// accepted. When no encoders were detected every name is accepted.
func (s Skills) HasEncoder(name string) bool {
	if name == "copy" || len(s.Encoders) == 0 {
		return true
	}
	_, ok := s.Encoders[name]
	return ok
}

// EncoderNames returns the sorted names of encoders of the given kind.
func (s Skills) EncoderNames(kind Kind) []string {
	var out []string
	for name, k := range s.Encoders {
		if k == kind {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// New runs binary to detect its version and encoders
func New(ctx context.Context, binary string) (Skills, error) {
	out, err := run(ctx, binary, "-version")
	if err != nil {
		return Skills{}, fmt.Errorf("can't run %s -version: %w", binary, err)
	}
	v := ParseVersion(out)
	if v.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}

	s := Skills{FFmpeg: v}
	if out, err := run(ctx, binary, "-hide_banner", "-encoders"); err == nil {
		s.Encoders = ParseEncoders(out)
	}
	return s, nil
}

func run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = []string{}
	return cmd.CombinedOutput()
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version (?:n|N-)?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reEncoder       = regexp.MustCompile(`^\s([VAS])[F.][S.][X.][B.][D.] ([0-9A-Za-z_-]+)\s`)
)

// ParseVersion parses `ffmpeg -version` output
func ParseVersion(data []byte) Version {
	v := Version{}
	if m := reVersion.FindSubmatch(data); m != nil {
		v.Version = string(m[1])
		if len(m[2]) == 0 {
			v.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		v.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		v.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		v.Libraries = append(v.Libraries, Library{
			Name:     string(m[1]),
			Compiled: strings.Join(strings.Fields(string(m[2])), ""),
			Linked:   strings.Join(strings.Fields(string(m[3])), ""),
		})
	}
	return v
}

// ParseEncoders parses `ffmpeg -encoders` output
func ParseEncoders(data []byte) map[string]Kind {
	encoders := make(map[string]Kind)
	started := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "------" {
			started = true
			continue
		}
		if !started {
			continue
		}
		m := reEncoder.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "V":
			encoders[m[2]] = KindVideo
		case "A":
			encoders[m[2]] = KindAudio
		case "S":
			encoders[m[2]] = KindSubtitle
		}
	}
	return encoders
}
