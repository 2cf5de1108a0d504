// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package process

import (
	"sync"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// Sampler observes CPU and memory usage of a running process.
type Sampler interface {
	Start(pid int) error
	Stop()
	Current() (cpu float64, memory uint64)
	Peak() (cpu float64, memory uint64)
}

type nullSampler struct{}

// NewNullSampler returns a sampler that records nothing
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(int) error            { return nil }
func (s *nullSampler) Stop()                      {}
func (s *nullSampler) Current() (float64, uint64) { return 0, 0 }
func (s *nullSampler) Peak() (float64, uint64)    { return 0, 0 }

// sysSampler 使用 gopsutil 周期采集进程 CPU 和内存
type sysSampler struct {
	interval time.Duration

	mu      sync.RWMutex
	proc    *gopsutilprocess.Process
	cpu     float64
	memory  uint64
	peakCPU float64
	peakMem uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewSysSampler creates a gopsutil based sampler. interval <= 0 means one
// second.
func NewSysSampler(interval time.Duration) Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &sysSampler{interval: interval}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.proc = proc
	s.cpu, s.memory, s.peakCPU, s.peakMem = 0, 0, 0, 0
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(proc, s.stop, s.done)
	return nil
}

func (s *sysSampler) loop(proc *gopsutilprocess.Process, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sample(proc)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *sysSampler) sample(proc *gopsutilprocess.Process) {
	var cpu float64
	var memory uint64
	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpu, s.memory = cpu, memory
	if cpu > s.peakCPU {
		s.peakCPU = cpu
	}
	if memory > s.peakMem {
		s.peakMem = memory
	}
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.proc = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	s.mu.Lock()
	s.cpu, s.memory = 0, 0
	s.mu.Unlock()
}

func (s *sysSampler) Current() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cpu, s.memory
}

func (s *sysSampler) Peak() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakCPU, s.peakMem
}
