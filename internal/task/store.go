// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package task

import (
	"container/ring"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/metrics"
	"github.com/ZSC714725/ffrunner/internal/process"

	"github.com/lithammer/shortuuid/v4"
)

// State of a job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Done reports whether the state is terminal.
func (s State) Done() bool {
	return s == StateFinished || s == StateFailed || s == StateCancelled
}

// Line is one log line with the time it was read
type Line struct {
	Timestamp time.Time
	Data      string
}

// Job is one ffmpeg run
type Job struct {
	ID        string
	Reference string
	Config    *Config
	CreatedAt int64

	updatedAt int64
	state     State
	pid       int
	startedAt time.Time
	progress  parse.Progress
	log       *ring.Ring
	result    ffmpeg.Result
	err       error
	lock      sync.RWMutex

	cancel  context.CancelFunc
	done    chan struct{}
	sampler process.Sampler
}

func newJob(config *Config, logLines int) *Job {
	now := time.Now().Unix()
	return &Job{
		ID:        config.ID,
		Reference: config.Reference,
		Config:    config,
		CreatedAt: now,
		updatedAt: now,
		state:     StateQueued,
		log:       ring.New(logLines),
		done:      make(chan struct{}),
		sampler:   process.NewSysSampler(time.Second),
	}
}

// State returns the current state
func (j *Job) State() State {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.state
}

// UpdatedAt is the unix time of the last state change
func (j *Job) UpdatedAt() int64 {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.updatedAt
}

// Pid of the ffmpeg process, 0 before it was spawned
func (j *Job) Pid() int {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.pid
}

// Runtime is how long the process has been running, or ran in total once
// the job is done.
func (j *Job) Runtime() time.Duration {
	j.lock.RLock()
	defer j.lock.RUnlock()

	switch {
	case j.startedAt.IsZero():
		return 0
	case j.state.Done():
		if j.result.Finished.IsZero() {
			return 0
		}
		return j.result.Finished.Sub(j.startedAt)
	default:
		return time.Since(j.startedAt)
	}
}

// Progress returns the last progress event
func (j *Job) Progress() parse.Progress {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.progress
}

// Log returns the retained log lines, oldest first
func (j *Job) Log() []Line {
	j.lock.RLock()
	defer j.lock.RUnlock()

	lines := []Line{}
	j.log.Do(func(v interface{}) {
		if l, ok := v.(Line); ok {
			lines = append(lines, l)
		}
	})
	return lines
}

// Result returns the run result. It is only complete once Done is closed.
func (j *Job) Result() ffmpeg.Result {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.result
}

// Err returns why the job did not finish successfully
func (j *Job) Err() error {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.err
}

// Done is closed when the job reached a terminal state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Usage returns the current CPU percent and RSS while running, the peaks
// once the job is done.
func (j *Job) Usage() (float64, uint64) {
	j.lock.RLock()
	state, res := j.state, j.result
	j.lock.RUnlock()

	if state.Done() {
		return res.CPU, res.Memory
	}
	return j.sampler.Current()
}

func (j *Job) setRunning(pid int) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.state = StateRunning
	j.pid = pid
	j.startedAt = time.Now()
	j.updatedAt = j.startedAt.Unix()
}

func (j *Job) setProgress(p parse.Progress) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.progress = p
}

func (j *Job) addLine(data string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.log.Value = Line{Timestamp: time.Now(), Data: data}
	j.log = j.log.Next()
}

func (j *Job) finish(state State, res ffmpeg.Result, err error) {
	j.lock.Lock()
	j.state = state
	j.result = res
	j.err = err
	j.updatedAt = time.Now().Unix()
	j.lock.Unlock()
	close(j.done)
}

// Metrics receives job lifecycle events
type Metrics interface {
	JobStarted()
	JobFinished(outcome string, d time.Duration)
	JobRejected()
	Progress(final bool, size uint64)
	LogLine()
}

type nopMetrics struct{}

func (nopMetrics) JobStarted()                       {}
func (nopMetrics) JobFinished(string, time.Duration) {}
func (nopMetrics) JobRejected()                      {}
func (nopMetrics) Progress(bool, uint64)             {}
func (nopMetrics) LogLine()                          {}

// jobMonitor feeds parser events into the job and the metrics
type jobMonitor struct {
	job     *Job
	metrics Metrics
}

func (m *jobMonitor) OnProgress(p parse.Progress) {
	m.job.setProgress(p)
	m.metrics.Progress(p.Final, p.Size)
}

func (m *jobMonitor) OnLog(line string) {
	m.job.addLine(line)
	m.metrics.LogLine()
}

// Store manages jobs in memory
type Store interface {
	Add(config *Config) (*Job, error)
	Get(id string) (*Job, error)
	List(ids []string, reference string) []*Job
	Cancel(id string) error
	Delete(id string) error
	Shutdown(ctx context.Context) error
}

// StoreConfig for NewStore
type StoreConfig struct {
	FFmpeg        ffmpeg.FFmpeg
	Logger        logger.Logger
	Metrics       Metrics
	MaxConcurrent int
	LogLines      int
}

type store struct {
	ffmpeg   ffmpeg.FFmpeg
	logger   logger.Logger
	metrics  Metrics
	logLines int

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	jobs    map[string]*Job
	closing bool
	mu      sync.RWMutex
}

// NewStore creates a job store
func NewStore(config StoreConfig) Store {
	s := &store{
		ffmpeg:   config.FFmpeg,
		logger:   config.Logger,
		metrics:  config.Metrics,
		logLines: config.LogLines,
		jobs:     make(map[string]*Job),
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logLines <= 0 {
		s.logLines = 100
	}
	n := config.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	s.sem = make(chan struct{}, n)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *store) Add(config *Config) (*Job, error) {
	if config == nil || len(config.Input) == 0 || len(config.Output) == 0 {
		return nil, ErrInvalidConfig
	}
	if !s.ffmpeg.ValidateInput(config.Input) {
		return nil, ErrInvalidInputAddress
	}
	if !s.ffmpeg.ValidateOutput(config.Output) {
		return nil, ErrInvalidOutputAddress
	}
	if len(config.ID) == 0 {
		config.ID = shortuuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return nil, ErrShuttingDown
	}
	if _, exists := s.jobs[config.ID]; exists {
		return nil, ErrJobExists
	}

	job := newJob(config, s.logLines)
	ctx, cancel := context.WithCancel(s.ctx)
	job.cancel = cancel
	s.jobs[job.ID] = job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, job)
	}()

	s.logger.Info("job %s queued", job.ID)
	return job, nil
}

func (s *store) run(ctx context.Context, job *Job) {
	log := logger.With(s.logger, "job "+job.ID+": ")

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		log.Info("cancelled while queued")
		job.finish(StateCancelled, ffmpeg.Result{ExitCode: -1}, fmt.Errorf("%w: %w", ffmpeg.ErrCancelled, ctx.Err()))
		return
	}
	defer func() { <-s.sem }()

	started := false
	res, err := s.ffmpeg.Execute(ctx, job.Config.CreateCommand(), ffmpeg.ExecOptions{
		Monitor:  &jobMonitor{job: job, metrics: s.metrics},
		Priority: job.Config.Priority(),
		Sampler:  job.sampler,
		Logger:   log,
		OnStart: func(pid int) {
			started = true
			job.setRunning(pid)
			s.metrics.JobStarted()
		},
	})

	state, outcome := classify(err)
	if started {
		s.metrics.JobFinished(outcome, res.Finished.Sub(res.Started))
	} else if state == StateFailed {
		s.metrics.JobRejected()
	}

	if err != nil {
		log.Info("%s: %v", state, err)
	} else {
		log.Info("finished")
	}
	job.finish(state, res, err)
}

// classify maps an Execute error to a job state and a metrics outcome.
func classify(err error) (State, string) {
	var execErr *ffmpeg.ExecError
	var cfgErr *ffmpeg.ConfigError

	switch {
	case err == nil:
		return StateFinished, metrics.OutcomeSucceeded
	case errors.Is(err, ffmpeg.ErrCancelled):
		return StateCancelled, metrics.OutcomeCancelled
	case errors.As(err, &cfgErr):
		return StateFailed, metrics.OutcomeRejected
	case errors.As(err, &execErr):
		return StateFailed, metrics.OutcomeFailed
	default:
		return StateFailed, metrics.OutcomeFailed
	}
}

func (s *store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (s *store) List(ids []string, reference string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Job{}
	for _, j := range s.jobs {
		if len(reference) > 0 && j.Reference != reference {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if j.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, j)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt != out[b].CreatedAt {
			return out[a].CreatedAt < out[b].CreatedAt
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Cancel interrupts a queued or running job. Cancelling a finished job is
// a no-op.
func (s *store) Cancel(id string) error {
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Delete cancels the job and forgets it. It does not wait for the process
// to exit.
func (s *store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.cancel()
	delete(s.jobs, id)
	return nil
}

// Shutdown cancels all jobs, refuses new ones and waits until every job
// goroutine has returned or ctx is done.
func (s *store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
