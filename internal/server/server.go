// Package server exposes the validation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/logicguard/internal/config"
	"github.com/dshills/logicguard/internal/orchestrator"
	"github.com/dshills/logicguard/internal/profile"
	"github.com/dshills/logicguard/internal/reasoner"
	"github.com/dshills/logicguard/internal/schema"
)

// Pipeline is the part of the orchestrator the server drives.
type Pipeline interface {
	Process(ctx context.Context, text string, opts ...orchestrator.RunOption) (*schema.PipelineResult, error)
	ConstraintsInfo() []reasoner.ConstraintInfo
	Profile() profile.Profile
	Model() string
	MaxIterations() int
}

// Server serves the HTTP API.
type Server struct {
	pipeline    Pipeline
	cfg         config.ServerConfig
	autoCorrect bool
	strict      bool
	version     string
	stats       *Stats
	limiter     *clientLimiter
	logger      *zap.Logger
	engine      *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by /health and in reports.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithDefaults sets the per-request defaults for auto-correction and strict
// severity handling.
func WithDefaults(autoCorrect, strict bool) Option {
	return func(s *Server) {
		s.autoCorrect = autoCorrect
		s.strict = strict
	}
}

// New builds a server around p.
func New(p Pipeline, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		pipeline:    p,
		cfg:         cfg,
		autoCorrect: true,
		version:     "dev",
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.stats = NewStats(cfg.HistorySize)
	if cfg.RequestLimit > 0 {
		s.limiter = newClientLimiter(cfg.RequestLimit, cfg.RequestBurst)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		validate := api.Group("")
		if s.limiter != nil {
			validate.Use(s.limiter.middleware())
		}
		validate.POST("/validate", s.handleValidate(false))
		validate.POST("/validate-only", s.handleValidate(true))

		api.GET("/constraints", s.handleConstraints)
		api.GET("/stats", s.handleStats)
		api.GET("/history", s.handleHistory)
		api.GET("/info", s.handleInfo)
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Stats returns the server's statistics collector.
func (s *Server) Stats() *Stats { return s.stats }

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.logger.Info("stopped")
		return nil
	})
	return g.Wait()
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("client", c.ClientIP()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
