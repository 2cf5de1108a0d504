// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package logger

import (
	"io"
	"log"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type defaultLogger struct {
	out    *log.Logger
	prefix string
	debug  bool
}

// New returns a logger writing to the standard logger. Debug lines are
// dropped unless debug is set.
func New(prefix string, debug bool) Logger {
	return &defaultLogger{out: log.Default(), prefix: prefix, debug: debug}
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, prefix string, debug bool) Logger {
	return &defaultLogger{out: log.New(w, "", log.LstdFlags), prefix: prefix, debug: debug}
}

// With returns a logger that adds prefix after the parent's prefix.
func With(l Logger, prefix string) Logger {
	if d, ok := l.(*defaultLogger); ok {
		return &defaultLogger{out: d.out, prefix: d.prefix + prefix, debug: d.debug}
	}
	return &prefixed{parent: l, prefix: prefix}
}

// Nop discards everything
func Nop() Logger {
	return nopLogger{}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.out.Printf("[INFO] "+l.prefix+format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.out.Printf("[ERROR] "+l.prefix+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.out.Printf("[DEBUG] "+l.prefix+format, args...)
}

type prefixed struct {
	parent Logger
	prefix string
}

func (l *prefixed) Info(format string, args ...interface{}) {
	l.parent.Info(l.prefix+format, args...)
}

func (l *prefixed) Error(format string, args ...interface{}) {
	l.parent.Error(l.prefix+format, args...)
}

func (l *prefixed) Debug(format string, args ...interface{}) {
	l.parent.Debug(l.prefix+format, args...)
}

type nopLogger struct{}

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
