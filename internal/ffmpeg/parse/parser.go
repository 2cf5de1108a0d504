// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package parse

import (
	"regexp"
	"strconv"
	"time"
)

// progressRe matches ffmpeg's classic status line. It is the whole wire
// format; keep it in sync with the ffmpeg versions in use.
var progressRe = regexp.MustCompile(`frame=\s*(?P<frame>\d+) fps=\s*(?P<fps>[0-9.]+) q=(?P<q>[-0-9.]+) (?P<final>L?)size=\s*(?P<size>\d+)kB time=(?P<h>\d{2}):(?P<m>\d{2}):(?P<s>\d{2})[.](?P<frac>\d+) bitrate=\s*(?P<bitrate>[0-9.]+)kbits/s.*`)

var (
	idxFrame   = progressRe.SubexpIndex("frame")
	idxFPS     = progressRe.SubexpIndex("fps")
	idxQ       = progressRe.SubexpIndex("q")
	idxFinal   = progressRe.SubexpIndex("final")
	idxSize    = progressRe.SubexpIndex("size")
	idxHours   = progressRe.SubexpIndex("h")
	idxMinutes = progressRe.SubexpIndex("m")
	idxSeconds = progressRe.SubexpIndex("s")
	idxFrac    = progressRe.SubexpIndex("frac")
	idxBitrate = progressRe.SubexpIndex("bitrate")
)

// Stats are the raw fields of one status line.
type Stats struct {
	Frame       uint64
	FPS         float64
	Quality     float64
	Final       bool
	SizeKB      uint64
	Time        float64 // media seconds
	BitrateKbps float64
}

// Match classifies a single line. It returns false for anything that is not
// a status line; that is never an error.
func Match(line string) (Stats, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Stats{}, false
	}

	var s Stats
	var err error
	if s.Frame, err = strconv.ParseUint(m[idxFrame], 10, 64); err != nil {
		return Stats{}, false
	}
	// [0-9.]+ admits things like "1.2.3"; treat those as plain log lines.
	if s.FPS, err = strconv.ParseFloat(m[idxFPS], 64); err != nil {
		return Stats{}, false
	}
	if s.Quality, err = strconv.ParseFloat(m[idxQ], 64); err != nil {
		return Stats{}, false
	}
	if s.SizeKB, err = strconv.ParseUint(m[idxSize], 10, 64); err != nil {
		return Stats{}, false
	}
	if s.BitrateKbps, err = strconv.ParseFloat(m[idxBitrate], 64); err != nil {
		return Stats{}, false
	}
	s.Final = m[idxFinal] == "L"

	h, _ := strconv.Atoi(m[idxHours])
	mm, _ := strconv.Atoi(m[idxMinutes])
	sec, _ := strconv.Atoi(m[idxSeconds])
	s.Time = float64(h*3600+mm*60+sec) + fraction(m[idxFrac])

	return s, true
}

// fraction turns the digits after the decimal point into a value in [0, 1).
// ffmpeg prints two digits (centiseconds), so this is digits/100 in practice.
func fraction(digits string) float64 {
	x, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0
	}
	div := 1.0
	for range digits {
		div *= 10
	}
	return float64(x) / div
}

// Progress is one structured progress event. Fraction is Time divided by
// the input duration and may exceed 1. When the duration is unknown it is
// always 0, which means "unknown" rather than "nothing done yet"; use Time
// and Frame instead.
type Progress struct {
	Fraction float64       `json:"fraction"` // Time / duration; 0 when the duration is unknown
	Frame    uint64        `json:"frame"`
	FPS      float64       `json:"fps"`
	Quality  float64       `json:"q"`
	Final    bool          `json:"final"`
	Size     uint64        `json:"size_bytes"`
	Time     float64       `json:"time_seconds"`
	BitRate  float64       `json:"bitrate_bps"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Monitor receives progress events and log lines. Callbacks run on the
// reader goroutine in arrival order and must not block for long.
type Monitor interface {
	OnProgress(p Progress)
	OnLog(line string)
}

// MonitorFuncs adapts plain functions to Monitor. Nil fields are skipped.
type MonitorFuncs struct {
	Progress func(Progress)
	Log      func(string)
}

func (m MonitorFuncs) OnProgress(p Progress) {
	if m.Progress != nil {
		m.Progress(p)
	}
}

func (m MonitorFuncs) OnLog(line string) {
	if m.Log != nil {
		m.Log(line)
	}
}

// Config for the parser
type Config struct {
	// Duration is the effective media duration in seconds; 0 if unknown.
	Duration float64
	Monitor  Monitor
	// Now is used for wall-clock elapsed times. Defaults to time.Now.
	Now func() time.Time
}

// Parser turns ffmpeg output lines into progress events. It implements
// process.Parser. Each line is handled on its own; the only state is the
// process start time set by Reset.
type Parser struct {
	duration float64
	monitor  Monitor
	now      func() time.Time
	start    time.Time
}

// New creates a Parser
func New(config Config) *Parser {
	p := &Parser{
		duration: config.Duration,
		monitor:  config.Monitor,
		now:      config.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.start = p.now()
	return p
}

// Reset records the process start time.
func (p *Parser) Reset(started time.Time) {
	p.start = started
}

// Duration returns the effective duration used for completion fractions.
func (p *Parser) Duration() float64 {
	return p.duration
}

// Parse handles one line and reports whether it was a progress line.
func (p *Parser) Parse(line string) bool {
	prog, ok := p.Progress(line)
	if !ok {
		if p.monitor != nil {
			p.monitor.OnLog(line)
		}
		return false
	}
	if p.monitor != nil {
		p.monitor.OnProgress(prog)
	}
	return true
}

// Progress converts line to a Progress without delivering it.
func (p *Parser) Progress(line string) (Progress, bool) {
	s, ok := Match(line)
	if !ok {
		return Progress{}, false
	}

	prog := Progress{
		Frame:   s.Frame,
		FPS:     s.FPS,
		Quality: s.Quality,
		Final:   s.Final,
		Size:    s.SizeKB * 1000,
		Time:    s.Time,
		BitRate: s.BitrateKbps * 1000,
		Elapsed: p.now().Sub(p.start),
	}
	if p.duration > 0 {
		prog.Fraction = s.Time / p.duration
	}
	return prog, true
}
