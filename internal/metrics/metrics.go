// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

// Package metrics exposes job counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ffrunner"

// Outcome labels for finished jobs.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// Collector records job lifecycle metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	started        prometheus.Counter
	finished       *prometheus.CounterVec
	running        prometheus.Gauge
	progressEvents prometheus.Counter
	logLines       prometheus.Counter
	duration       prometheus.Histogram
	encodedBytes   prometheus.Counter
}

// New creates a Collector with Go and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Number of ffmpeg processes spawned.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Number of jobs finished, by outcome.",
		}, []string{"outcome"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Number of ffmpeg processes currently running.",
		}),
		progressEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_total",
			Help:      "Progress lines parsed from ffmpeg output.",
		}),
		logLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Non-progress lines read from ffmpeg output.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of ffmpeg runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		encodedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoded_bytes_total",
			Help:      "Output size reported by final progress lines.",
		}),
	}

	c.registry.MustRegister(
		c.started, c.finished, c.running, c.progressEvents,
		c.logLines, c.duration, c.encodedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, o := range []string{OutcomeSucceeded, OutcomeFailed, OutcomeCancelled, OutcomeRejected} {
		c.finished.WithLabelValues(o)
	}
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) JobStarted() {
	c.started.Inc()
	c.running.Inc()
}

func (c *Collector) JobFinished(outcome string, d time.Duration) {
	c.running.Dec()
	c.finished.WithLabelValues(outcome).Inc()
	c.duration.Observe(d.Seconds())
}

// JobRejected counts a job that never spawned a process.
func (c *Collector) JobRejected() {
	c.finished.WithLabelValues(OutcomeRejected).Inc()
}

func (c *Collector) Progress(final bool, size uint64) {
	c.progressEvents.Inc()
	if final {
		c.encodedBytes.Add(float64(size))
	}
}

func (c *Collector) LogLine() {
	c.logLines.Inc()
}
