// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether an address may be used as an ffmpeg input or
// output.
type Validator interface {
	IsValid(address string) bool
}

// Rules are allow and block regular expressions. Block wins; an empty allow
// list allows everything not blocked.
type Rules struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

type validator struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewValidator compiles rules. Blank expressions are ignored.
func NewValidator(rules Rules) (Validator, error) {
	allow, err := compileAll("allow", rules.Allow)
	if err != nil {
		return nil, err
	}
	block, err := compileAll("block", rules.Block)
	if err != nil {
		return nil, err
	}
	return &validator{allow: allow, block: block}, nil
}

func compileAll(kind string, exps []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, exp := range exps {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s expression '%s': %w", kind, exp, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (v *validator) IsValid(address string) bool {
	for _, e := range v.block {
		if e.MatchString(address) {
			return false
		}
	}
	if len(v.allow) == 0 {
		return true
	}
	for _, e := range v.allow {
		if e.MatchString(address) {
			return true
		}
	}
	return false
}
