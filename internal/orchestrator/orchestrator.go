// Package orchestrator is the pipeline entry point: parse, evaluate and, when
// violations exist and correction is enabled, hand the text to the
// self-correction loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/config"
	"github.com/dshills/logicguard/internal/corrector"
	"github.com/dshills/logicguard/internal/llm"
	"github.com/dshills/logicguard/internal/parser"
	"github.com/dshills/logicguard/internal/profile"
	"github.com/dshills/logicguard/internal/reasoner"
	"github.com/dshills/logicguard/internal/schema"
)

// ErrClosed is returned by Process after Close.
var ErrClosed = errors.New("orchestrator: closed")

// Orchestrator runs validation pipelines. It is safe for concurrent use;
// runs share only the immutable catalog and the collaborators.
type Orchestrator struct {
	cfg       *config.Config
	profile   profile.Profile
	parser    corrector.Parser
	generator corrector.Generator
	engine    *reasoner.Engine
	loop      *corrector.Loop
	model     string
	logger    *zap.Logger

	owned     []io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option supplies a collaborator or setting to New.
type Option func(*Orchestrator)

// WithParser supplies the parser. The orchestrator does not close it.
func WithParser(p corrector.Parser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// WithGenerator supplies the repair generator. The orchestrator does not
// close it.
func WithGenerator(g corrector.Generator) Option {
	return func(o *Orchestrator) { o.generator = g }
}

// WithEngine supplies the reasoning engine.
func WithEngine(e *reasoner.Engine) Option {
	return func(o *Orchestrator) { o.engine = e }
}

// WithLogger sets the logger passed to every collaborator built by New.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds an orchestrator. Collaborators not supplied through options
// are created from cfg and released by Close. A nil cfg uses
// config.Default().
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &Orchestrator{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	prof, err := profile.Load(cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.profile = prof

	if o.engine == nil {
		cat, err := prof.Catalog(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		o.engine = reasoner.New(cat, reasoner.WithLogger(o.logger))
	}

	if o.parser == nil || o.generator == nil {
		client, err := llm.NewClient(llm.Config{
			Provider:     cfg.LLM.Provider,
			Model:        cfg.LLM.Model,
			BaseURL:      cfg.LLM.BaseURL,
			SystemPrompt: prof.RepairSystemPrompt(),
			MaxTokens:    cfg.LLM.MaxTokens,
			Temperature:  cfg.LLM.RepairTemperature,
			Timeout:      cfg.Timeout(),
			MaxRetries:   cfg.LLM.MaxRetries,
			RateLimit:    cfg.LLM.RateLimit,
			RateBurst:    cfg.LLM.RateBurst,
		}, llm.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		o.owned = append(o.owned, client)
		o.model = client.Model()
		if o.parser == nil {
			o.parser = parser.New(client,
				parser.WithSchema(prof.ExtractionSchema),
				parser.WithTemperature(cfg.LLM.ParseTemperature),
				parser.WithMaxTokens(cfg.LLM.MaxTokens),
				parser.WithLogger(o.logger))
		}
		if o.generator == nil {
			o.generator = client
		}
	}

	o.loop = corrector.New(o.parser, o.generator, o.engine,
		corrector.WithMaxIterations(cfg.Correction.MaxIterations),
		corrector.WithLogger(o.logger))
	o.logger = o.logger.Named("orchestrator")
	o.logger.Info("orchestrator ready",
		zap.String("profile", prof.Name),
		zap.String("catalog", o.engine.Catalog().Name()),
		zap.Int("constraints", o.engine.Catalog().Len()),
		zap.Int("max_iterations", o.loop.MaxIterations()),
		zap.Bool("auto_correct", cfg.Correction.AutoCorrect))
	return o, nil
}

type runOptions struct {
	correct       bool
	maxIterations int
}

// RunOption adjusts a single Process call.
type RunOption func(*runOptions)

// WithMaxIterations overrides the iteration ceiling for one run.
func WithMaxIterations(n int) RunOption {
	return func(r *runOptions) { r.maxIterations = n }
}

// WithoutCorrection disables the correction loop for one run.
func WithoutCorrection() RunOption {
	return func(r *runOptions) { r.correct = false }
}

// WithCorrection enables the correction loop for one run regardless of the
// configured default.
func WithCorrection() RunOption {
	return func(r *runOptions) { r.correct = true }
}

// Process runs the full pipeline on text. The returned result is never nil;
// when err is non-nil it holds the progress made before the failure.
func (o *Orchestrator) Process(ctx context.Context, text string, opts ...RunOption) (*schema.PipelineResult, error) {
	ro := runOptions{correct: o.cfg.Correction.AutoCorrect}
	for _, opt := range opts {
		opt(&ro)
	}

	start := time.Now()
	res := &schema.PipelineResult{
		RunID:           uuid.NewString(),
		OriginalText:    text,
		FinalText:       text,
		FinalViolations: []schema.Violation{},
	}
	log := o.logger.With(zap.String("run_id", res.RunID))
	outcome := "error"
	defer func() {
		res.Elapsed = time.Since(start)
		pipelineRuns.WithLabelValues(outcome).Inc()
		pipelineDuration.Observe(res.Elapsed.Seconds())
		log.Info("pipeline finished",
			zap.String("outcome", outcome),
			zap.Int("iterations", res.Iterations()),
			zap.Int("violations", len(res.FinalViolations)),
			zap.Duration("elapsed", res.Elapsed))
	}()

	if o.closed.Load() {
		return res, ErrClosed
	}

	rec, err := o.parser.Parse(ctx, text)
	if err != nil {
		res.ParseError = err.Error()
		if !errors.Is(err, schema.ErrParse) {
			err = fmt.Errorf("%w: %w", schema.ErrParse, err)
		}
		return res, fmt.Errorf("orchestrator: %w", err)
	}
	res.Record = rec
	res.FinalRecord = rec

	var values schema.Values
	if rec != nil {
		values = rec.Values
	}
	initial := o.engine.CheckConsistency(values)
	res.InitialConsistency = &initial
	res.FinalViolations = initial.Violations

	if initial.Consistent {
		outcome = "valid"
		return res, nil
	}
	if !ro.correct {
		outcome = "invalid"
		return res, nil
	}

	log.Debug("starting correction", zap.Int("violations", len(initial.Violations)))
	corr, err := o.loop.Capped(ro.maxIterations).Correct(ctx, text)
	if err != nil {
		return res, fmt.Errorf("orchestrator: correction: %w", err)
	}
	res.Correction = corr
	res.FinalText = corr.CorrectedText
	res.FinalViolations = corr.FinalViolations
	if corr.FinalRecord != nil {
		res.FinalRecord = corr.FinalRecord
	}
	switch {
	case corr.Consistent:
		outcome = "corrected"
	default:
		outcome = string(corr.Reason)
	}
	return res, nil
}

// ValidateOnly parses and evaluates text once without correction.
func (o *Orchestrator) ValidateOnly(ctx context.Context, text string) (*schema.PipelineResult, error) {
	return o.Process(ctx, text, WithoutCorrection())
}

// ConstraintsInfo describes the active catalog.
func (o *Orchestrator) ConstraintsInfo() []reasoner.ConstraintInfo {
	return o.engine.ConstraintsSummary()
}

// Engine returns the reasoning engine.
func (o *Orchestrator) Engine() *reasoner.Engine { return o.engine }

// Profile returns the active profile.
func (o *Orchestrator) Profile() profile.Profile { return o.profile }

// Model returns the model name of the LLM client built by New, or "" when
// both collaborators were supplied.
func (o *Orchestrator) Model() string { return o.model }

// MaxIterations returns the configured iteration ceiling.
func (o *Orchestrator) MaxIterations() int { return o.loop.MaxIterations() }

// Close releases the collaborators New created. It is idempotent.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		var errs []error
		for _, c := range o.owned {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		o.closeErr = errors.Join(errs...)
		o.logger.Debug("orchestrator closed", zap.Int("released", len(o.owned)))
	})
	return o.closeErr
}
