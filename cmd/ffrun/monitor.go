// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ZSC714725/ffrunner/internal/command"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/parse"
)

const barMax = 1000

// progressMonitor draws a progress bar on terminals and prints a status
// line at most once a second everywhere else. Its callbacks all run on the
// runner's reader goroutine.
type progressMonitor struct {
	w       io.Writer
	verbose bool
	bar     *progressbar.ProgressBar
	last    parse.Progress
	printed time.Time
}

func newProgressMonitor(w io.Writer, verbose bool) *progressMonitor {
	m := &progressMonitor{w: w, verbose: verbose}
	if isTerminal(w) {
		m.bar = progressbar.NewOptions(barMax,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		)
	}
	return m
}

func (m *progressMonitor) OnProgress(p parse.Progress) {
	m.last = p

	if m.bar != nil {
		m.bar.Describe(describe(p))
		if p.Fraction > 0 {
			m.bar.Set(int(min(p.Fraction, 1) * barMax))
		}
		return
	}

	now := time.Now()
	if !p.Final && now.Sub(m.printed) < time.Second {
		return
	}
	m.printed = now
	if p.Fraction > 0 {
		fmt.Fprintf(m.w, "[%5.1f%%] %s\n", min(p.Fraction, 1)*100, describe(p))
	} else {
		fmt.Fprintln(m.w, describe(p))
	}
}

func (m *progressMonitor) OnLog(line string) {
	if !m.verbose {
		return
	}
	if m.bar != nil {
		m.bar.Clear()
	}
	fmt.Fprintln(m.w, line)
}

// Finish completes the bar after a successful run and clears it otherwise.
func (m *progressMonitor) Finish(ok bool) {
	if m.bar == nil {
		return
	}
	if ok {
		m.bar.Finish()
		return
	}
	m.bar.Clear()
}

// Last returns the most recent progress event
func (m *progressMonitor) Last() parse.Progress {
	return m.last
}

func describe(p parse.Progress) string {
	return fmt.Sprintf("frame=%d fps=%.1f time=%s size=%s bitrate=%s",
		p.Frame, p.FPS,
		command.FormatTime(p.Time),
		humanize.Bytes(p.Size),
		humanize.SIWithDigits(p.BitRate, 1, "bit/s"))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
