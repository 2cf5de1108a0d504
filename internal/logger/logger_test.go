// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "ffrunner: ", false)

	l.Info("started %d", 1)
	l.Error("failed %s", "x")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "[INFO] ffrunner: started 1") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] ffrunner: failed x") {
		t.Errorf("missing error line in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written with debug off: %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := With(NewWriter(&buf, "ffrunner: ", true), "[job abc] ")

	l.Debug("visible")
	if !strings.Contains(buf.String(), "[DEBUG] ffrunner: [job abc] visible") {
		t.Errorf("got %q", buf.String())
	}
}

type captured struct{ lines []string }

func (c *captured) Info(format string, args ...interface{})  { c.lines = append(c.lines, format) }
func (c *captured) Error(format string, args ...interface{}) { c.lines = append(c.lines, format) }
func (c *captured) Debug(format string, args ...interface{}) { c.lines = append(c.lines, format) }

func TestWith_ForeignLogger(t *testing.T) {
	c := &captured{}
	With(c, "p: ").Info("x")
	if len(c.lines) != 1 || c.lines[0] != "p: x" {
		t.Errorf("lines = %q", c.lines)
	}
}
