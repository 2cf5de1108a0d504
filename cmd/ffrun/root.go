// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/ffrunner/internal/command"
	"github.com/ZSC714725/ffrunner/internal/config"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffrunner/internal/logger"
)

// globals are the flags shared by every subcommand
type globals struct {
	configPath string
	ffmpeg     string
	ffprobe    string
	debug      bool
}

func (g *globals) load() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.ffmpeg != "" {
		cfg.FFmpeg.Path = g.ffmpeg
	}
	if g.ffprobe != "" {
		cfg.FFmpeg.Probe = g.ffprobe
	}
	return cfg, nil
}

// options map one to one onto the command builder
type options struct {
	overwrite     bool
	format        string
	videoCodec    string
	audioCodec    string
	videoBitRate  int64
	audioBitRate  int64
	frameRate     float64
	size          string
	threads       int
	seek          float64
	duration      float64
	inputDelay    float64
	videoFilter   string
	audioFilter   string
	filterComplex string
	noAudio       bool
	noVideo       bool
	preset        string
	crf           int
	extra         []string

	nice    int
	dryRun  bool
	verbose bool
}

func newRootCommand() *cobra.Command {
	g := &globals{}
	opts := &options{crf: -1}

	rootCmd := &cobra.Command{
		Use:           "ffrun [flags] <input> <output>",
		Short:         "Run one ffmpeg transcode with live progress",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, g, opts, args[0], args[1])
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Configuration file path")
	pf.StringVar(&g.ffmpeg, "ffmpeg", "", "ffmpeg binary (overrides config)")
	pf.StringVar(&g.ffprobe, "ffprobe", "", "ffprobe binary (overrides config)")
	pf.BoolVar(&g.debug, "debug", false, "Log debug output to stderr")

	f := rootCmd.Flags()
	f.BoolVarP(&opts.overwrite, "overwrite", "y", false, "Overwrite the output file")
	f.StringVarP(&opts.format, "format", "f", "", "Output container format")
	f.StringVar(&opts.videoCodec, "vcodec", "", "Video encoder")
	f.StringVar(&opts.audioCodec, "acodec", "", "Audio encoder")
	f.Int64Var(&opts.videoBitRate, "vbitrate", 0, "Video bit rate in bits/s")
	f.Int64Var(&opts.audioBitRate, "abitrate", 0, "Audio bit rate in bits/s")
	f.Float64Var(&opts.frameRate, "fps", 0, "Output frame rate")
	f.StringVar(&opts.size, "size", "", "Output frame size as WxH")
	f.IntVar(&opts.threads, "threads", 0, "Encoder thread count")
	f.Float64Var(&opts.seek, "ss", 0, "Start offset in seconds")
	f.Float64VarP(&opts.duration, "duration", "t", 0, "Duration to encode in seconds")
	f.Float64Var(&opts.inputDelay, "itsoffset", 0, "Input time offset in seconds, may be negative")
	f.StringVar(&opts.videoFilter, "vf", "", "Video filter chain")
	f.StringVar(&opts.audioFilter, "af", "", "Audio filter chain")
	f.StringVar(&opts.filterComplex, "filter-complex", "", "Complex filter graph")
	f.BoolVar(&opts.noAudio, "an", false, "Drop audio")
	f.BoolVar(&opts.noVideo, "vn", false, "Drop video")
	f.StringVar(&opts.preset, "preset", "", "Encoder preset")
	f.IntVar(&opts.crf, "crf", -1, "Constant rate factor")
	f.StringArrayVarP(&opts.extra, "option", "o", nil, "Extra output option, e.g. -o '-g 50'")
	f.IntVar(&opts.nice, "nice", 0, "Run ffmpeg under nice with this niceness")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print the command line and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Print ffmpeg log lines")

	rootCmd.AddCommand(newProbeCommand(g))
	rootCmd.AddCommand(newEncodersCommand(g))

	return rootCmd
}

// build turns the flags into a command. Input-side options go before -i.
func (o *options) build(input, output string) command.Command {
	cmd := command.New()
	if o.overwrite {
		cmd = cmd.Overwrite()
	}
	if o.seek > 0 {
		cmd = cmd.Seek(o.seek)
	}
	if o.inputDelay != 0 {
		cmd = cmd.InputDelay(o.inputDelay)
	}
	cmd = cmd.Input(input)

	if o.duration > 0 {
		cmd = cmd.Duration(o.duration)
	}
	if o.threads != 0 {
		cmd = cmd.Threads(o.threads)
	}
	if o.videoCodec != "" {
		cmd = cmd.VideoCodec(o.videoCodec)
	}
	if o.audioCodec != "" {
		cmd = cmd.AudioCodec(o.audioCodec)
	}
	if o.videoBitRate != 0 {
		cmd = cmd.VideoBitRate(o.videoBitRate)
	}
	if o.audioBitRate != 0 {
		cmd = cmd.AudioBitRate(o.audioBitRate)
	}
	if o.frameRate != 0 {
		cmd = cmd.FrameRate(o.frameRate)
	}
	if o.size != "" {
		// A malformed size leaves 0x0, which the builder rejects.
		w, h, _ := parseSize(o.size)
		cmd = cmd.Size(w, h)
	}
	if o.videoFilter != "" {
		cmd = cmd.Filter(o.videoFilter)
	}
	if o.audioFilter != "" {
		cmd = cmd.AudioFilter(o.audioFilter)
	}
	if o.filterComplex != "" {
		cmd = cmd.FilterComplex(o.filterComplex)
	}
	if o.preset != "" {
		cmd = cmd.Preset(o.preset)
	}
	if o.crf >= 0 {
		cmd = cmd.CRF(o.crf)
	}
	if o.noAudio {
		cmd = cmd.NoAudio()
	}
	if o.noVideo {
		cmd = cmd.NoVideo()
	}
	if o.format != "" {
		cmd = cmd.Format(o.format)
	}
	for _, e := range o.extra {
		fields := strings.Fields(e)
		if len(fields) == 0 {
			continue
		}
		values := make([]command.Token, 0, len(fields)-1)
		for _, v := range fields[1:] {
			values = append(values, command.Text(v))
		}
		cmd = cmd.Option(fields[0], values...)
	}
	return cmd.Output(output)
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	return w, h, nil
}

func runTranscode(cmd *cobra.Command, g *globals, opts *options, input, output string) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	if opts.size != "" {
		if _, _, err := parseSize(opts.size); err != nil {
			return err
		}
	}

	c := opts.build(input, output)
	if err := c.Err(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	var priority command.Priority
	switch {
	case cmd.Flags().Changed("nice"):
		if opts.nice < -20 || opts.nice > 19 {
			return fmt.Errorf("niceness %d out of range -20..19", opts.nice)
		}
		priority = command.Nice(opts.nice)
	case cfg.FFmpeg.Niceness != nil:
		priority = command.Nice(*cfg.FFmpeg.Niceness)
	}

	if opts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(command.Assemble(cfg.FFmpeg.Path, c, priority), " "))
		return nil
	}

	log := logger.Nop()
	if g.debug {
		log = logger.NewWriter(cmd.ErrOrStderr(), "", true)
	}

	inputs, err := ffmpeg.NewValidator(cfg.FFmpeg.Input)
	if err != nil {
		return err
	}
	outputs, err := ffmpeg.NewValidator(cfg.FFmpeg.Output)
	if err != nil {
		return err
	}

	ff, err := ffmpeg.New(cmd.Context(), ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		Prober:          probe.New(cfg.FFmpeg.Probe),
		ValidatorInput:  inputs,
		ValidatorOutput: outputs,
		Priority:        priority,
		GracePeriod:     cfg.FFmpeg.GracePeriodDuration(),
		Logger:          log,
	})
	if err != nil {
		return err
	}

	mon := newProgressMonitor(cmd.ErrOrStderr(), opts.verbose)
	res, err := ff.Execute(cmd.Context(), c, ffmpeg.ExecOptions{Monitor: mon})
	mon.Finish(err == nil)
	if err != nil {
		return err
	}

	last := mon.Last()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s, %s of media in %s\n",
		output,
		humanize.Bytes(last.Size),
		command.FormatTime(last.Time),
		res.Finished.Sub(res.Started).Round(time.Millisecond))
	return nil
}

func newProbeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <input>",
		Short: "Show the duration and frame size ffprobe reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			info, err := probe.New(cfg.FFmpeg.Probe).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "duration: %s (%.3fs)\n", command.FormatTime(info.Duration), info.Duration)
			if info.Width > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "size:     %dx%d\n", info.Width, info.Height)
			}
			return nil
		},
	}
}

func newEncodersCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "encoders",
		Short: "List the encoders the ffmpeg binary supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ff, err := ffmpeg.New(cmd.Context(), ffmpeg.Config{Binary: cfg.FFmpeg.Path})
			if err != nil {
				return err
			}
			s := ff.Skills()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (ffmpeg %s)\n", ff.Binary(), s.FFmpeg.Version)
			for _, kind := range []skills.Kind{skills.KindVideo, skills.KindAudio, skills.KindSubtitle} {
				names := s.EncoderNames(kind)
				fmt.Fprintf(out, "%s (%d): %s\n", kind, len(names), strings.Join(names, " "))
			}
			return nil
		},
	}
}
