// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FFRunner - FFmpeg 转码进程封装

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ZSC714725/ffrunner/internal/ffmpeg"
	"github.com/ZSC714725/ffrunner/internal/ffmpeg/skills"
	"github.com/ZSC714725/ffrunner/internal/task"
	"github.com/gin-gonic/gin"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Handler holds dependencies
type Handler struct {
	store  task.Store
	ffmpeg ffmpeg.FFmpeg
}

// NewHandler creates API handler
func NewHandler(store task.Store, ff ffmpeg.FFmpeg) *Handler {
	return &Handler{store: store, ffmpeg: ff}
}

// Register mounts the API routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/about", h.About)
	r.POST("/about/reload", h.ReloadSkills)

	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.AddJob)
	r.GET("/jobs/:id", h.GetJob)
	r.DELETE("/jobs/:id", h.DeleteJob)
	r.GET("/jobs/:id/state", h.GetState)
	r.GET("/jobs/:id/report", h.GetReport)
	r.PUT("/jobs/:id/command", h.Command)
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// AddJob POST /api/v3/jobs
func (h *Handler) AddJob(c *gin.Context) {
	var cfg task.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	// Build errors surface here instead of as a failed job.
	if err := cfg.CreateCommand().Err(); err != nil && len(cfg.Input) > 0 && len(cfg.Output) > 0 {
		errResp(c, http.StatusBadRequest, "Invalid config", err.Error())
		return
	}

	j, err := h.store.Add(&cfg)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrJobExists):
			errResp(c, http.StatusBadRequest, "Job exists", err.Error())
		case errors.Is(err, task.ErrInvalidInputAddress), errors.Is(err, task.ErrInvalidOutputAddress):
			errResp(c, http.StatusBadRequest, "Invalid address", err.Error())
		case errors.Is(err, task.ErrShuttingDown):
			errResp(c, http.StatusServiceUnavailable, "Shutting down", err.Error())
		default:
			errResp(c, http.StatusBadRequest, "Invalid config", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, jobToAPI(j, "config,state"))
}

// ListJobs GET /api/v3/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	filter := c.DefaultQuery("filter", "")
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	jobs := h.store.List(ids, reference)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToAPI(j, filter))
	}

	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/v3/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, ok := h.job(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobToAPI(j, c.DefaultQuery("filter", "")))
}

// DeleteJob DELETE /api/v3/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// GetState GET /api/v3/jobs/:id/state
func (h *Handler) GetState(c *gin.Context) {
	j, ok := h.job(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobState(j))
}

// GetReport GET /api/v3/jobs/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	j, ok := h.job(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobReport(j))
}

// Command PUT /api/v3/jobs/:id/command
func (h *Handler) Command(c *gin.Context) {
	id := c.Param("id")

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	switch req.Command {
	case "cancel":
		if err := h.store.Cancel(id); err != nil {
			errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
			return
		}
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: cancel")
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// About GET /api/v3/about
func (h *Handler) About(c *gin.Context) {
	c.JSON(http.StatusOK, h.about())
}

// ReloadSkills POST /api/v3/about/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ffmpeg.ReloadSkills(c.Request.Context()); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.about())
}

func (h *Handler) about() About {
	s := h.ffmpeg.Skills()
	return About{
		Binary: h.ffmpeg.Binary(),
		FFmpeg: s.FFmpeg,
		Encoders: map[string][]string{
			string(skills.KindVideo):    s.EncoderNames(skills.KindVideo),
			string(skills.KindAudio):    s.EncoderNames(skills.KindAudio),
			string(skills.KindSubtitle): s.EncoderNames(skills.KindSubtitle),
		},
	}
}

func (h *Handler) job(c *gin.Context) (*task.Job, bool) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return nil, false
	}
	return j, true
}

func jobToAPI(j *task.Job, filter string) Job {
	out := Job{
		ID:        j.ID,
		Type:      "ffmpeg",
		Reference: j.Reference,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt(),
	}

	includeAll := filter == ""
	if includeAll || strings.Contains(filter, "config") {
		out.Config = j.Config
	}
	if includeAll || strings.Contains(filter, "state") {
		state := jobState(j)
		out.State = &state
	}
	if includeAll || strings.Contains(filter, "report") {
		report := jobReport(j)
		out.Report = &report
	}
	return out
}

func jobState(j *task.Job) JobState {
	state := j.State()
	cpu, mem := j.Usage()
	prog := j.Progress()

	s := JobState{
		State:   string(state),
		Pid:     j.Pid(),
		Runtime: int64(j.Runtime().Seconds()),
		Memory:  mem,
		CPU:     cpu,
		Progress: &Progress{
			Fraction: prog.Fraction,
			Frame:    prog.Frame,
			FPS:      prog.FPS,
			Quality:  prog.Quality,
			Final:    prog.Final,
			Size:     prog.Size,
			Time:     prog.Time,
			BitRate:  prog.BitRate,
			Elapsed:  prog.Elapsed.Seconds(),
		},
	}

	if log := j.Log(); len(log) > 0 {
		s.LastLog = log[len(log)-1].Data
	}

	if !state.Done() {
		s.Command = j.Config.CreateCommand().Tokens()
		return s
	}

	res := j.Result()
	s.Command = res.Command
	if len(s.Command) == 0 {
		s.Command = j.Config.CreateCommand().Tokens()
	}
	if res.LastLine != "" {
		s.LastLog = res.LastLine
	}
	if res.ExitCode >= 0 && !res.Started.IsZero() {
		code := res.ExitCode
		s.ExitCode = &code
	}
	if err := j.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

func jobReport(j *task.Job) JobReport {
	lines := j.Log()
	report := JobReport{
		CreatedAt: j.CreatedAt,
		Log:       make([][2]string, len(lines)),
	}
	for i, line := range lines {
		report.Log[i] = [2]string{line.Timestamp.Format(timeFormat), line.Data}
	}
	return report
}
