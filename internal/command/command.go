// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装
//
// Package command builds ffmpeg argument lists. A Command is immutable: every
// mutator returns a new Command and leaves the receiver untouched, so partial
// commands can be shared and extended independently.

package command

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Well-known flags looked up by the runner.
const (
	FlagInput      = "-i"
	FlagDuration   = "-t"
	FlagSeek       = "-ss"
	FlagVideoCodec = "-c:v"
	FlagAudioCodec = "-c:a"
)

// Argument is one ordered token group, usually a flag followed by its values.
// An output file is an Argument holding a single File token.
type Argument []Token

// Flag returns the leading token, or "" for an empty argument.
func (a Argument) Flag() string {
	if len(a) == 0 {
		return ""
	}
	return a[0].String()
}

// Strings renders every token.
func (a Argument) Strings() []string {
	out := make([]string, len(a))
	for i, t := range a {
		out[i] = t.String()
	}
	return out
}

// Command is an ordered sequence of arguments. The zero value is an empty
// command ready for use.
type Command struct {
	args []Argument
	err  error
}

// New returns an empty command.
func New() Command {
	return Command{}
}

// Err returns the first validation error recorded by a mutator.
func (c Command) Err() error {
	return c.err
}

// Len returns the number of arguments.
func (c Command) Len() int {
	return len(c.args)
}

// Arguments returns a copy of the arguments.
func (c Command) Arguments() []Argument {
	out := make([]Argument, len(c.args))
	for i, a := range c.args {
		out[i] = append(Argument(nil), a...)
	}
	return out
}

// Lookup returns the first argument whose leading token equals flag.
func (c Command) Lookup(flag string) (Argument, bool) {
	for _, a := range c.args {
		if a.Flag() == flag {
			return append(Argument(nil), a...), true
		}
	}
	return nil, false
}

// InputFile returns the path of the first -i argument.
func (c Command) InputFile() (string, bool) {
	a, ok := c.Lookup(FlagInput)
	if !ok || len(a) < 2 {
		return "", false
	}
	return a[1].String(), true
}

// ExplicitDuration returns the value of the first -t argument.
func (c Command) ExplicitDuration() (float64, bool) {
	a, ok := c.Lookup(FlagDuration)
	if !ok || len(a) < 2 {
		return 0, false
	}
	s, ok := a[1].(Seconds)
	if !ok {
		return 0, false
	}
	return float64(s), true
}

// Outputs returns the output paths, in order.
func (c Command) Outputs() []string {
	var out []string
	for _, a := range c.args {
		if len(a) != 1 {
			continue
		}
		if f, ok := a[0].(File); ok {
			out = append(out, string(f))
		}
	}
	return out
}

// Tokens flattens the command into argv order.
func (c Command) Tokens() []string {
	var out []string
	for _, a := range c.args {
		out = append(out, a.Strings()...)
	}
	return out
}

func (c Command) String() string {
	return strings.Join(c.Tokens(), " ")
}

// Append returns a new command with arg appended.
func (c Command) Append(arg Argument) Command {
	args := make([]Argument, len(c.args), len(c.args)+1)
	copy(args, c.args)
	args = append(args, append(Argument(nil), arg...))
	return Command{args: args, err: c.err}
}

func (c Command) fail(err error) Command {
	if c.err == nil {
		c.err = err
	}
	return c
}

// Option appends an arbitrary flag with values.
func (c Command) Option(flag string, values ...Token) Command {
	if flag == "" {
		return c.fail(errors.New("empty flag"))
	}
	return c.Append(append(Argument{Flag(flag)}, values...))
}

// Input appends -i <path>.
func (c Command) Input(path string) Command {
	f, err := NewFile(path)
	if err != nil {
		return c.fail(fmt.Errorf("input: %w", err)).Option(FlagInput, File(path))
	}
	return c.Option(FlagInput, f)
}

// Output appends the output path.
func (c Command) Output(path string) Command {
	f, err := NewFile(path)
	if err != nil {
		return c.fail(fmt.Errorf("output: %w", err)).Append(Argument{File(path)})
	}
	return c.Append(Argument{f})
}

// Overwrite appends -y.
func (c Command) Overwrite() Command {
	return c.Option("-y")
}

// Format appends -f <name>.
func (c Command) Format(name string) Command {
	return c.text("-f", "format", name)
}

// VideoCodec appends -c:v <name>.
func (c Command) VideoCodec(name string) Command {
	return c.text(FlagVideoCodec, "video codec", name)
}

// AudioCodec appends -c:a <name>.
func (c Command) AudioCodec(name string) Command {
	return c.text(FlagAudioCodec, "audio codec", name)
}

// VideoBitRate appends -b:v <bits per second>.
func (c Command) VideoBitRate(bps int64) Command {
	return c.positive("-b:v", "video bitrate", bps)
}

// AudioBitRate appends -b:a <bits per second>.
func (c Command) AudioBitRate(bps int64) Command {
	return c.positive("-b:a", "audio bitrate", bps)
}

// FrameRate appends -r <fps>.
func (c Command) FrameRate(fps float64) Command {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return c.fail(fmt.Errorf("frame rate: invalid value %v", fps)).Option("-r", Float(fps))
	}
	return c.Option("-r", Float(fps))
}

// Size appends -s <width>x<height>.
func (c Command) Size(width, height int) Command {
	v := Text(fmt.Sprintf("%dx%d", width, height))
	if width <= 0 || height <= 0 {
		return c.fail(fmt.Errorf("size: invalid dimensions %s", v)).Option("-s", v)
	}
	return c.Option("-s", v)
}

// Threads appends -threads <n>.
func (c Command) Threads(n int) Command {
	return c.positive("-threads", "threads", int64(n))
}

// CRF appends -crf <n>.
func (c Command) CRF(n int) Command {
	if n < 0 {
		return c.fail(fmt.Errorf("crf: negative value %d", n)).Option("-crf", Int(n))
	}
	return c.Option("-crf", Int(n))
}

// Preset appends -preset <name>.
func (c Command) Preset(name string) Command {
	return c.text("-preset", "preset", name)
}

// Seek appends -ss <HH:MM:SS>.
func (c Command) Seek(start float64) Command {
	return c.seconds(FlagSeek, "seek", start)
}

// Duration appends -t <HH:MM:SS>.
func (c Command) Duration(d float64) Command {
	return c.seconds(FlagDuration, "duration", d)
}

// TimeRange appends -ss <start> -t <duration>.
func (c Command) TimeRange(start, duration float64) Command {
	return c.Seek(start).Duration(duration)
}

// InputDelay appends -itsoffset <[-]HH:MM:SS>. Negative offsets shift the
// input earlier.
func (c Command) InputDelay(d float64) Command {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return c.fail(fmt.Errorf("input delay: invalid value %v", d)).Option("-itsoffset", Offset(0))
	}
	return c.Option("-itsoffset", Offset(math.Trunc(d)))
}

// Filter appends -vf <chain>.
func (c Command) Filter(chain string) Command {
	return c.text("-vf", "video filter", chain)
}

// AudioFilter appends -af <chain>.
func (c Command) AudioFilter(chain string) Command {
	return c.text("-af", "audio filter", chain)
}

// FilterComplex appends -filter_complex <graph>.
func (c Command) FilterComplex(graph string) Command {
	return c.text("-filter_complex", "filter graph", graph)
}

// NoAudio appends -an.
func (c Command) NoAudio() Command {
	return c.Option("-an")
}

// NoVideo appends -vn.
func (c Command) NoVideo() Command {
	return c.Option("-vn")
}

func (c Command) text(flag, what, v string) Command {
	if strings.TrimSpace(v) == "" {
		return c.fail(fmt.Errorf("%s: empty value", what)).Option(flag, Text(v))
	}
	return c.Option(flag, Text(v))
}

func (c Command) positive(flag, what string, v int64) Command {
	if v <= 0 {
		return c.fail(fmt.Errorf("%s: must be positive, got %d", what, v)).Option(flag, Int(v))
	}
	return c.Option(flag, Int(v))
}

// seconds truncates to whole seconds so the rendered token and the value the
// runner reads back through ExplicitDuration agree.
func (c Command) seconds(flag, what string, v float64) Command {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return c.fail(fmt.Errorf("%s: invalid value %v", what, v)).Option(flag, Seconds(0))
	}
	return c.Option(flag, Seconds(math.Trunc(v)))
}

// NewFile resolves path to an absolute path. URLs, pipes and "-" are kept
// as given.
func NewFile(path string) (File, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("empty path")
	}
	if path == "-" || strings.Contains(path, "://") || strings.HasPrefix(path, "pipe:") {
		return File(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return File(abs), nil
}
