// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/ffrunner/internal/api"
	"github.com/ZSC714725/ffrunner/internal/command"
	"github.com/ZSC714725/ffrunner/internal/config"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/probe"
	"github.com/ZSC714725/ffrunner/internal/logger"
	"github.com/ZSC714725/ffrunner/internal/metrics"
	"github.com/ZSC714725/ffrunner/internal/task"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logger.New("", cfg.Log.Debug)

	inputs, err := ffmpeg.NewValidator(cfg.FFmpeg.Input)
	if err != nil {
		log.Fatalf("Input rules: %v", err)
	}
	outputs, err := ffmpeg.NewValidator(cfg.FFmpeg.Output)
	if err != nil {
		log.Fatalf("Output rules: %v", err)
	}

	var priority command.Priority
	if cfg.FFmpeg.Niceness != nil {
		priority = command.Nice(*cfg.FFmpeg.Niceness)
	}

	ff, err := ffmpeg.New(ctx, ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		Prober:          probe.New(cfg.FFmpeg.Probe),
		ValidatorInput:  inputs,
		ValidatorOutput: outputs,
		Priority:        priority,
		GracePeriod:     cfg.FFmpeg.GracePeriodDuration(),
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}
	logger.Info("using %s (%s)", ff.Binary(), ff.Skills().FFmpeg.Version)

	collector := metrics.New()

	store := task.NewStore(task.StoreConfig{
		FFmpeg:        ff,
		Logger:        logger,
		Metrics:       collector,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		LogLines:      cfg.FFmpeg.LogLines,
	})
	handler := api.NewHandler(store, ff)

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.Default())

	handler.Register(r.Group("/api/v3"))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(collector.Handler()))
	}

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}
	go func() {
		log.Printf("FFRunner listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Jobs get the ffmpeg grace period plus a little to finalize outputs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FFmpeg.GracePeriodDuration()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown: %v", err)
	}
	if err := store.Shutdown(shutdownCtx); err != nil {
		logger.Error("job shutdown: %v", err)
	}
}
