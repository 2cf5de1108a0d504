// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/ffrunner/internal/command"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/process"
)

// Monitor receives progress events and log lines of a run.
type Monitor = parse.Monitor

// FFmpeg runs commands against one ffmpeg binary
type FFmpeg interface {
	Execute(ctx context.Context, cmd command.Command, opts ExecOptions) (Result, error)
	ValidateInput(address string) bool
	ValidateOutput(address string) bool
	Binary() string
	Skills() skills.Skills
	ReloadSkills(ctx context.Context) error
}

// ExecOptions are per-run settings
type ExecOptions struct {
	// Monitor is optional; without it progress is computed but not delivered.
	Monitor Monitor
	// Priority overrides the configured default when set.
	Priority command.Priority
	Sampler  process.Sampler
	Logger   logger.Logger
	// OnStart is called once the ffmpeg process has been spawned.
	OnStart func(pid int)
}

// Result of a successful or failed run
type Result struct {
	ExitCode  int       `json:"exit_code"`
	Succeeded bool      `json:"succeeded"`
	LastLine  string    `json:"last_logline"`
	Command   []string  `json:"command"`
	Duration  float64   `json:"duration_seconds"` // effective media duration, 0 if unknown
	Started   time.Time `json:"started_at"`
	Finished  time.Time `json:"finished_at"`
	CPU       float64   `json:"cpu_peak"`
	Memory    uint64    `json:"memory_peak_bytes"`
}

// Config for FFmpeg
type Config struct {
	Binary          string
	Prober          probe.Prober
	ValidatorInput  Validator
	ValidatorOutput Validator
	Priority        command.Priority
	GracePeriod     time.Duration
	Logger          logger.Logger
}

type runFunc func(ctx context.Context, config process.Config) (process.Result, error)

type ffmpeg struct {
	binary       string
	prober       probe.Prober
	validatorIn  Validator
	validatorOut Validator
	priority     command.Priority
	grace        time.Duration
	logger       logger.Logger
	run          runFunc

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// New resolves the binary and detects its skills
func New(ctx context.Context, config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	s, err := skills.New(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}

	config.Binary = binary
	f := newFFmpeg(config)
	f.skills = s
	return f, nil
}

func newFFmpeg(config Config) *ffmpeg {
	f := &ffmpeg{
		binary:       config.Binary,
		prober:       config.Prober,
		validatorIn:  config.ValidatorInput,
		validatorOut: config.ValidatorOutput,
		priority:     config.Priority,
		grace:        config.GracePeriod,
		logger:       config.Logger,
		run:          process.Run,
	}
	if f.validatorIn == nil {
		f.validatorIn, _ = NewValidator(Rules{})
	}
	if f.validatorOut == nil {
		f.validatorOut, _ = NewValidator(Rules{})
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}
	return f
}

func (f *ffmpeg) Binary() string {
	return f.binary
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) ValidateOutput(address string) bool {
	return f.validatorOut.IsValid(address)
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills(ctx context.Context) error {
	s, err := skills.New(ctx, f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}

// Execute validates cmd, runs ffmpeg once and waits for it to exit.
//
// Errors: *ConfigError if cmd cannot be run (nothing is spawned), *ExecError
// for a nonzero exit code, an error wrapping ErrCancelled if ctx ended first.
func (f *ffmpeg) Execute(ctx context.Context, cmd command.Command, opts ExecOptions) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = f.logger
	}

	input, err := f.check(cmd)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	duration := f.effectiveDuration(ctx, cmd, input, log)

	priority := opts.Priority
	if !priority.IsSet() {
		priority = f.priority
	}
	argv := command.Assemble(f.binary, cmd, priority)

	parser := parse.New(parse.Config{
		Duration: duration,
		Monitor:  opts.Monitor,
	})

	log.Info("running: %s", strings.Join(argv, " "))

	pres, err := f.run(ctx, process.Config{
		Argv:        argv,
		Parser:      parser,
		Sampler:     opts.Sampler,
		GracePeriod: f.grace,
		Logger:      wrapLogger(log),
		OnStart:     opts.OnStart,
	})

	res := Result{
		ExitCode: pres.ExitCode,
		LastLine: pres.LastLine,
		Command:  argv,
		Duration: duration,
		Started:  pres.Started,
		Finished: pres.Finished,
		CPU:      pres.CPU,
		Memory:   pres.Memory,
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			log.Info("cancelled after %s", pres.Duration())
			return res, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		log.Error("run failed: %v", err)
		return res, fmt.Errorf("run ffmpeg: %w", err)
	}

	if pres.ExitCode != 0 {
		e := &ExecError{
			Command:  strings.Join(argv, " "),
			ExitCode: pres.ExitCode,
			LastLine: pres.LastLine,
		}
		log.Error("%v", e)
		return res, e
	}

	res.Succeeded = true
	log.Info("finished in %s", pres.Duration())
	return res, nil
}

// check rejects commands that must not be spawned and returns the input.
func (f *ffmpeg) check(cmd command.Command) (string, error) {
	if err := cmd.Err(); err != nil {
		return "", &ConfigError{Reason: "malformed command", Err: err}
	}

	input, ok := cmd.InputFile()
	if !ok {
		return "", &ConfigError{Reason: "no input file"}
	}
	if !f.ValidateInput(input) {
		return "", &ConfigError{Reason: fmt.Sprintf("input address %q is not allowed", input)}
	}
	for _, out := range cmd.Outputs() {
		if !f.ValidateOutput(out) {
			return "", &ConfigError{Reason: fmt.Sprintf("output address %q is not allowed", out)}
		}
	}

	s := f.Skills()
	for _, flag := range []string{command.FlagVideoCodec, command.FlagAudioCodec} {
		a, ok := cmd.Lookup(flag)
		if !ok || len(a) < 2 {
			continue
		}
		if name := a[1].String(); !s.HasEncoder(name) {
			return "", &ConfigError{Reason: fmt.Sprintf("unknown encoder %q for %s", name, flag)}
		}
	}
	return input, nil
}

// effectiveDuration is the explicit -t value when present and non-zero,
// else the probed input duration. 0 means unknown.
func (f *ffmpeg) effectiveDuration(ctx context.Context, cmd command.Command, input string, log logger.Logger) float64 {
	if d, ok := cmd.ExplicitDuration(); ok && d > 0 {
		return d
	}
	if f.prober == nil {
		return 0
	}
	info, err := f.prober.Probe(ctx, input)
	if err != nil {
		log.Error("probe %s: %v", input, err)
		return 0
	}
	return info.Duration
}

func wrapLogger(l logger.Logger) *loggerWrapper {
	return &loggerWrapper{logger: l, prefix: "[ffmpeg] "}
}

// loggerWrapper adapts logger.Logger to process.Logger
type loggerWrapper struct {
	logger logger.Logger
	prefix string
}

func (w *loggerWrapper) Info(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Info(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Error(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Error(w.prefix+format, args...)
	}
}

func (w *loggerWrapper) Debug(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(w.prefix+format, args...)
	}
}
