// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package command

import (
	"fmt"
	"math"
	"strconv"
)

// Token is a single command-line word. String must be deterministic.
type Token interface {
	String() string
}

// Flag is an option name such as "-i" or "-c:v".
type Flag string

func (f Flag) String() string { return string(f) }

// File is a path. It is resolved to an absolute path when built via NewFile.
type File string

func (f File) String() string { return string(f) }

// Seconds is a time value rendered as HH:MM:SS.
type Seconds float64

func (s Seconds) String() string { return FormatTime(float64(s)) }

// Offset is a signed time value rendered as [-]HH:MM:SS.
type Offset float64

func (o Offset) String() string {
	if o < 0 {
		return "-" + FormatTime(-float64(o))
	}
	return FormatTime(float64(o))
}

// Int is rendered as its decimal literal.
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is rendered in its shortest decimal form.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'f', -1, 64) }

// Text is passed through verbatim.
type Text string

func (t Text) String() string { return string(t) }

// FormatTime renders seconds as zero-padded HH:MM:SS. Sub-second parts are
// truncated, never rounded: 59.9 becomes 00:00:59.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
