// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装
//
// Package process runs one external process to completion while streaming
// its combined output through a Parser.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// DefaultGracePeriod is how long a cancelled process gets between SIGINT and
// SIGKILL. ffmpeg needs a moment to finalize the container on interrupt.
const DefaultGracePeriod = 5 * time.Second

// DefaultDrainTimeout bounds how long output is still read after the
// process has exited. A background child that inherited the pipe would
// otherwise hold Run open until it exits too.
const DefaultDrainTimeout = 2 * time.Second

// Config for a single run
type Config struct {
	// Argv is the full argument vector; Argv[0] is the executable.
	Argv        []string
	Dir         string
	Env         []string // nil inherits the current environment
	Parser      Parser
	Sampler     Sampler
	GracePeriod time.Duration
	// DrainTimeout is how long to keep reading after exit.
	DrainTimeout time.Duration
	Logger       Logger
	// OnStart is called on the calling goroutine right after the spawn.
	OnStart func(pid int)
}

// Result of a run
type Result struct {
	Pid      int
	ExitCode int
	Started  time.Time
	Finished time.Time
	// LastLine is the most recent output line that was not progress.
	LastLine string
	Lines    uint64
	CPU      float64 // peak CPU percent
	Memory   uint64  // peak RSS bytes
}

// Duration returns the wall-clock run time.
func (r Result) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Run starts the process and blocks until it has exited and its output has
// been drained. A nonzero exit code is not an error here; it is reported in
// Result.ExitCode. If ctx is done before the process exits, the process is
// interrupted, then killed after the grace period, and ctx.Err() is returned
// whatever the exit code.
func Run(ctx context.Context, config Config) (Result, error) {
	res := Result{ExitCode: -1}

	if len(config.Argv) == 0 || len(config.Argv[0]) == 0 {
		return res, fmt.Errorf("no valid binary given")
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	parser := config.Parser
	if parser == nil {
		parser = &nullParser{}
	}
	sampler := config.Sampler
	if sampler == nil {
		sampler = NewNullSampler()
	}
	logger := config.Logger
	if logger == nil {
		logger = &nopLogger{}
	}
	grace := config.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	drain := config.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}

	cmd := exec.Command(config.Argv[0], config.Argv[1:]...)
	cmd.Dir = config.Dir
	cmd.Env = config.Env
	setProcessGroup(cmd)

	// One pipe for both streams keeps stdout and stderr lines in the order
	// the process wrote them.
	pr, pw, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return res, fmt.Errorf("start %s: %w", config.Argv[0], err)
	}
	// The child holds its own copy; closing ours lets the reader see EOF.
	pw.Close()

	res.Pid = cmd.Process.Pid
	res.Started = time.Now()
	parser.Reset(res.Started)
	logger.Debug("started pid %d: %s", res.Pid, strings.Join(config.Argv, " "))

	if config.OnStart != nil {
		config.OnStart(res.Pid)
	}

	if err := sampler.Start(res.Pid); err != nil {
		logger.Debug("sampler for pid %d: %v", res.Pid, err)
	}

	var interrupted atomic.Bool
	exited := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		stopper(ctx, cmd.Process, grace, exited, &interrupted, logger)
	}()

	// The reader drains concurrently with Wait, so a full pipe buffer never
	// blocks the process.
	done := make(chan readResult, 1)
	go func() {
		done <- reader(pr, parser)
	}()

	waitErr := cmd.Wait()
	close(exited)
	<-stopped
	res.Finished = time.Now()

	pr.SetReadDeadline(time.Now().Add(drain))
	rr := <-done
	pr.Close()

	sampler.Stop()
	res.CPU, res.Memory = sampler.Peak()
	res.LastLine = rr.last
	res.Lines = rr.lines
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(rr.err, os.ErrDeadlineExceeded):
		logger.Info("pid %d exited but its output was still open after %s", res.Pid, drain)
	case rr.err != nil:
		logger.Error("reading output of pid %d: %v", res.Pid, rr.err)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, waitErr
		}
	}

	// Exit 0 counts as success only if the process got there before it
	// was interrupted.
	if interrupted.Load() || (res.ExitCode != 0 && ctx.Err() != nil) {
		return res, ctx.Err()
	}

	logger.Debug("pid %d exited with %d after %s", res.Pid, res.ExitCode, res.Duration())
	return res, nil
}

// stopper interrupts the process when ctx is done and kills it if it is
// still alive after grace. interrupted is set once the signal was delivered.
func stopper(ctx context.Context, p *os.Process, grace time.Duration, exited <-chan struct{}, interrupted *atomic.Bool, logger Logger) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}

	logger.Info("interrupting pid %d: %v", p.Pid, ctx.Err())
	if err := interrupt(p); err != nil {
		logger.Error("interrupt pid %d: %v", p.Pid, err)
	} else {
		interrupted.Store(true)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-exited:
	case <-timer.C:
		logger.Info("killing pid %d after %s", p.Pid, grace)
		if err := kill(p); err != nil {
			logger.Error("kill pid %d: %v", p.Pid, err)
		}
	}
}

type readResult struct {
	last  string
	lines uint64
	err   error
}

// reader owns the last-line slot; nobody else touches it until the
// goroutine has returned.
func reader(r io.Reader, parser Parser) readResult {
	var rr readResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLine)

	for scanner.Scan() {
		line := scanner.Text()
		rr.lines++
		if !parser.Parse(line) {
			rr.last = line
		}
	}

	if err := scanner.Err(); err != nil {
		rr.err = err
		// Keep draining so the process never blocks on a full pipe. This
		// ends at the read deadline at the latest.
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			io.Copy(io.Discard, r)
		}
	}
	return rr
}

// scanLine splits on both \n and \r; ffmpeg redraws its status line with a
// bare carriage return.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
