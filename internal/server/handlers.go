package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/orchestrator"
	"github.com/dshills/logicguard/internal/render"
	"github.com/dshills/logicguard/internal/schema"
)

type validateRequest struct {
	Text          string `json:"text" binding:"required"`
	AutoCorrect   *bool  `json:"auto_correct"`
	Strict        *bool  `json:"strict"`
	MaxIterations int    `json:"max_iterations" binding:"omitempty,min=1,max=10"`
}

func (s *Server) handleValidate(validateOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text cannot be empty"})
			return
		}

		autoCorrect := s.autoCorrect
		if req.AutoCorrect != nil {
			autoCorrect = *req.AutoCorrect
		}
		if validateOnly {
			autoCorrect = false
		}
		strict := s.strict
		if req.Strict != nil {
			strict = *req.Strict
		}

		opts := []orchestrator.RunOption{orchestrator.WithoutCorrection()}
		if autoCorrect {
			opts = []orchestrator.RunOption{orchestrator.WithCorrection()}
		}
		if req.MaxIterations > 0 {
			opts = append(opts, orchestrator.WithMaxIterations(req.MaxIterations))
		}

		res, err := s.pipeline.Process(c.Request.Context(), req.Text, opts...)
		rep := render.BuildReport(res, err, render.ReportOptions{
			Version:     s.version,
			Profile:     s.pipeline.Profile().Name,
			Model:       s.pipeline.Model(),
			AutoCorrect: autoCorrect,
			Strict:      strict || s.pipeline.Profile().StrictSeverity,
			Checked:     len(s.pipeline.ConstraintsInfo()),
		})
		s.stats.Record(res, rep, err)

		status := http.StatusOK
		if err != nil {
			status = statusFor(err)
			s.logger.Warn("validation failed",
				zap.String("run_id", rep.Meta.RunID),
				zap.Int("status", status),
				zap.Error(err))
		}
		c.JSON(status, rep)
	}
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schema.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleConstraints(c *gin.Context) {
	info := s.pipeline.ConstraintsInfo()
	c.JSON(http.StatusOK, gin.H{
		"profile":     s.pipeline.Profile().Name,
		"count":       len(info),
		"constraints": info,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries := s.stats.History(limit)
	c.JSON(http.StatusOK, gin.H{"history": entries, "total": s.stats.Snapshot().Total})
}

func (s *Server) handleInfo(c *gin.Context) {
	prof := s.pipeline.Profile()
	c.JSON(http.StatusOK, gin.H{
		"version":        s.version,
		"model":          s.pipeline.Model(),
		"profile":        prof.Name,
		"description":    prof.Description,
		"max_iterations": s.pipeline.MaxIterations(),
		"auto_correct":   s.autoCorrect,
		"strict":         s.strict || prof.StrictSeverity,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}
