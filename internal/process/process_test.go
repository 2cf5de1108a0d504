// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.

package process

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

type recordingParser struct {
	mu      sync.Mutex
	started time.Time
	lines   []string
}

func (p *recordingParser) Reset(started time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = started
}

func (p *recordingParser) Parse(line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return strings.HasPrefix(line, "frame=")
}

func (p *recordingParser) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func TestRun_Success(t *testing.T) {
	sh := requireShell(t)
	parser := &recordingParser{}

	res, err := Run(context.Background(), Config{
		Argv:   []string{sh, "-c", `echo "Input #0"; echo "Stream mapping:" 1>&2; printf 'frame=1\rframe=2\n'`},
		Parser: parser,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.LastLine != "Stream mapping:" {
		t.Errorf("LastLine = %q, want %q", res.LastLine, "Stream mapping:")
	}
	if res.Lines != 4 {
		t.Errorf("Lines = %d, want 4", res.Lines)
	}

	want := []string{"Input #0", "Stream mapping:", "frame=1", "frame=2"}
	got := parser.Lines()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
	if parser.started.IsZero() || !parser.started.Equal(res.Started) {
		t.Errorf("parser started = %v, result started = %v", parser.started, res.Started)
	}
	if res.Duration() <= 0 {
		t.Errorf("Duration() = %v, want > 0", res.Duration())
	}
}

func TestRun_ExitCode(t *testing.T) {
	sh := requireShell(t)

	res, err := Run(context.Background(), Config{
		Argv: []string{sh, "-c", `echo "in.mp4: No such file or directory" 1>&2; exit 2`},
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for a nonzero exit", err)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}
	if res.LastLine != "in.mp4: No such file or directory" {
		t.Errorf("LastLine = %q", res.LastLine)
	}
}

func TestRun_LargeOutputDoesNotDeadlock(t *testing.T) {
	sh := requireShell(t)

	// ~1 MiB of output, well past any pipe buffer.
	script := `i=0; while [ $i -lt 20000 ]; do echo "line $i ................................................"; i=$((i+1)); done`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := Run(ctx, Config{Argv: []string{sh, "-c", script}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Lines != 20000 {
		t.Errorf("Lines = %d, want 20000", res.Lines)
	}
	if !strings.HasPrefix(res.LastLine, "line 19999 ") {
		t.Errorf("LastLine = %q", res.LastLine)
	}
}

func TestRun_Cancel(t *testing.T) {
	sh := requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	res, err := Run(ctx, Config{
		Argv:        []string{sh, "-c", `echo started; sleep 30`},
		GracePeriod: time.Second,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run() took %v after cancel", elapsed)
	}
	if res.ExitCode == 0 {
		t.Errorf("ExitCode = 0 for a cancelled run")
	}
	if res.LastLine != "started" {
		t.Errorf("LastLine = %q, want %q", res.LastLine, "started")
	}
}

func TestRun_CancelWithCleanExit(t *testing.T) {
	sh := requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res, err := Run(ctx, Config{
		Argv:        []string{sh, "-c", `trap 'echo interrupted; exit 0' INT; echo started; while :; do sleep 0.05; done`},
		GracePeriod: 5 * time.Second,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 from the trap", res.ExitCode)
	}
	if res.LastLine != "interrupted" {
		t.Errorf("LastLine = %q, want %q", res.LastLine, "interrupted")
	}
}

func TestRun_CancelAfterExit(t *testing.T) {
	sh := requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := Run(ctx, Config{Argv: []string{sh, "-c", "echo done"}})
	cancel()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRun_BackgroundChildHoldsOutput(t *testing.T) {
	sh := requireShell(t)

	start := time.Now()
	res, err := Run(context.Background(), Config{
		Argv:         []string{sh, "-c", "sleep 5 & echo done; exit 0"},
		DrainTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run() took %v, want it to return after the drain timeout", elapsed)
	}
	if res.ExitCode != 0 || res.LastLine != "done" {
		t.Errorf("ExitCode = %d, LastLine = %q", res.ExitCode, res.LastLine)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Argv: []string{"ffmpeg"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_InvalidBinary(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"empty argv", nil},
		{"empty binary", []string{""}},
		{"missing binary", []string{"/nonexistent/ffmpeg-binary"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(context.Background(), Config{Argv: tt.argv}); err == nil {
				t.Error("Run() error = nil")
			}
		})
	}
}

func TestScanLine(t *testing.T) {
	input := "a\r\nb\rc\n\n\rd"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLine)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}

	want := []string{"a", "b", "c", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestNullSampler(t *testing.T) {
	s := NewNullSampler()
	if err := s.Start(1); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	s.Stop()
	if cpu, mem := s.Peak(); cpu != 0 || mem != 0 {
		t.Errorf("Peak() = %v, %v", cpu, mem)
	}
}

func TestSysSampler(t *testing.T) {
	sh := requireShell(t)
	s := NewSysSampler(10 * time.Millisecond)

	res, err := Run(context.Background(), Config{
		Argv:    []string{sh, "-c", "sleep 0.3"},
		Sampler: s,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Memory == 0 {
		t.Error("Result.Memory = 0, want the peak RSS")
	}
	if cpu, mem := s.Current(); cpu != 0 || mem != 0 {
		t.Errorf("Current() after Stop = %v, %v", cpu, mem)
	}

	// A stopped sampler can be started again and resets its peaks.
	if err := s.Start(os.Getpid()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, mem := s.Current(); mem > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Current() memory stayed 0")
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if _, mem := s.Current(); mem != 0 {
		t.Errorf("Current() memory after Stop = %d", mem)
	}
	if _, peak := s.Peak(); peak == 0 {
		t.Error("Peak() memory = 0 after sampling")
	}
}
