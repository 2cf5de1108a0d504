// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.

package parse

import (
	"math"
	"testing"
	"time"
)

const finalLine = "frame=  120 fps= 30.0 q=-1.0 Lsize=    512kB time=00:00:04.00 bitrate= 838.8kbits/s"

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestMatch_FinalLine(t *testing.T) {
	s, ok := Match(finalLine)
	if !ok {
		t.Fatal("Match() = false, want true")
	}

	if s.Frame != 120 {
		t.Errorf("Frame = %d, want 120", s.Frame)
	}
	if !approx(s.FPS, 30.0) {
		t.Errorf("FPS = %v, want 30", s.FPS)
	}
	if !approx(s.Quality, -1.0) {
		t.Errorf("Quality = %v, want -1", s.Quality)
	}
	if !s.Final {
		t.Error("Final = false, want true")
	}
	if s.SizeKB != 512 {
		t.Errorf("SizeKB = %d, want 512", s.SizeKB)
	}
	if !approx(s.Time, 4.0) {
		t.Errorf("Time = %v, want 4", s.Time)
	}
	if !approx(s.BitrateKbps, 838.8) {
		t.Errorf("BitrateKbps = %v, want 838.8", s.BitrateKbps)
	}
}

func TestMatch_Lines(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		final   bool
		time    float64
		frame   uint64
		sizeKB  uint64
		bitrate float64
		quality float64
	}{
		{
			name: "intermediate", ok: true,
			line:  "frame=   48 fps=0.0 q=28.0 size=     256kB time=01:02:03.45 bitrate= 1024.0kbits/s speed=3.2x",
			time:  3723.45, frame: 48, sizeKB: 256, bitrate: 1024, quality: 28,
		},
		{
			name: "three fraction digits", ok: true,
			line:  "frame=1 fps=1 q=0.0 size=1kB time=00:00:01.250 bitrate=8.0kbits/s",
			time:  1.25, frame: 1, sizeKB: 1, bitrate: 8,
		},
		{name: "stream mapping", line: "Stream mapping:"},
		{name: "empty", line: ""},
		{name: "progress key value", line: "frame=60"},
		{name: "uppercase", line: "FRAME=  120 FPS= 30.0 Q=-1.0 LSIZE=    512kB TIME=00:00:04.00 BITRATE= 838.8kbits/s"},
		{name: "na bitrate", line: "frame=  120 fps= 30.0 q=-1.0 size=    512kB time=00:00:04.00 bitrate=N/A"},
		{name: "malformed fps", line: "frame=  1 fps=1.2.3 q=1 size=1kB time=00:00:01.00 bitrate=1kbits/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Match(tt.line)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if !ok {
				return
			}
			if s.Final != tt.final {
				t.Errorf("Final = %v, want %v", s.Final, tt.final)
			}
			if !approx(s.Time, tt.time) {
				t.Errorf("Time = %v, want %v", s.Time, tt.time)
			}
			if s.Frame != tt.frame {
				t.Errorf("Frame = %d, want %d", s.Frame, tt.frame)
			}
			if s.SizeKB != tt.sizeKB {
				t.Errorf("SizeKB = %d, want %d", s.SizeKB, tt.sizeKB)
			}
			if !approx(s.BitrateKbps, tt.bitrate) {
				t.Errorf("BitrateKbps = %v, want %v", s.BitrateKbps, tt.bitrate)
			}
			if !approx(s.Quality, tt.quality) {
				t.Errorf("Quality = %v, want %v", s.Quality, tt.quality)
			}
		})
	}
}

type recorder struct {
	progress []Progress
	logs     []string
}

func (r *recorder) OnProgress(p Progress) { r.progress = append(r.progress, p) }
func (r *recorder) OnLog(line string)     { r.logs = append(r.logs, line) }

func TestParser_Progress(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(3 * time.Second)
	rec := &recorder{}

	p := New(Config{
		Duration: 8.0,
		Monitor:  rec,
		Now:      func() time.Time { return now },
	})
	p.Reset(start)

	if !p.Parse(finalLine) {
		t.Fatal("Parse() = false for a progress line")
	}
	if len(rec.progress) != 1 || len(rec.logs) != 0 {
		t.Fatalf("got %d events, %d logs", len(rec.progress), len(rec.logs))
	}

	got := rec.progress[0]
	if !approx(got.Fraction, 0.5) {
		t.Errorf("Fraction = %v, want 0.5", got.Fraction)
	}
	if got.Size != 512000 {
		t.Errorf("Size = %d, want 512000", got.Size)
	}
	if !approx(got.BitRate, 838800) {
		t.Errorf("BitRate = %v, want 838800", got.BitRate)
	}
	if !approx(got.Time, 4.0) {
		t.Errorf("Time = %v, want 4", got.Time)
	}
	if got.Elapsed != 3*time.Second {
		t.Errorf("Elapsed = %v, want 3s", got.Elapsed)
	}
	if !got.Final || got.Frame != 120 {
		t.Errorf("Final = %v, Frame = %d", got.Final, got.Frame)
	}
}

func TestParser_LogLines(t *testing.T) {
	rec := &recorder{}
	p := New(Config{Monitor: rec})

	lines := []string{"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':", "Stream mapping:", "  Stream #0:0 -> #0:0 (h264 (native) -> h264 (libx264))"}
	for _, l := range lines {
		if p.Parse(l) {
			t.Errorf("Parse(%q) = true, want false", l)
		}
	}

	if len(rec.logs) != len(lines) {
		t.Fatalf("got %d logs, want %d", len(rec.logs), len(lines))
	}
	for i := range lines {
		if rec.logs[i] != lines[i] {
			t.Errorf("log %d = %q, want %q", i, rec.logs[i], lines[i])
		}
	}
}

func TestParser_UnknownDuration(t *testing.T) {
	p := New(Config{})
	prog, ok := p.Progress(finalLine)
	if !ok {
		t.Fatal("Progress() = false")
	}
	if prog.Fraction != 0 {
		t.Errorf("Fraction = %v, want 0 for unknown duration", prog.Fraction)
	}
}

func TestParser_NilMonitor(t *testing.T) {
	p := New(Config{Duration: 4})
	if !p.Parse(finalLine) {
		t.Error("Parse() = false without a monitor")
	}
	if p.Parse("Stream mapping:") {
		t.Error("Parse() = true for a log line without a monitor")
	}
}

func TestMonitorFuncs(t *testing.T) {
	var n int
	m := MonitorFuncs{Log: func(string) { n++ }}
	m.OnProgress(Progress{})
	m.OnLog("x")
	if n != 1 {
		t.Errorf("log callback called %d times, want 1", n)
	}
}
