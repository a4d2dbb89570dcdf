// Package corrector implements the self-correction loop: repeated
// extract → evaluate → repair rounds with cycle detection, a hard iteration
// ceiling and best-effort degradation.
//
// States: EVALUATING → (CONSISTENT | VIOLATING) → CORRECTING → EVALUATING → …
// until CONSISTENT, CYCLE_DETECTED or MAX_ITERATIONS. Violations are data;
// only parser and generator failures are errors.
package corrector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/schema"
)

// DefaultMaxIterations is the iteration ceiling used when none is configured.
const DefaultMaxIterations = 5

// Parser converts text into a structured record.
type Parser interface {
	Parse(ctx context.Context, text string) (*schema.Record, error)
}

// Generator returns a single completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Checker evaluates extracted values. *reasoner.Engine satisfies it.
type Checker interface {
	CheckConsistency(values schema.Values) schema.ConsistencyResult
}

// Loop drives correction runs. A Loop is immutable and may serve
// concurrent runs; each Correct call keeps its state on the stack.
type Loop struct {
	parser        Parser
	generator     Generator
	checker       Checker
	maxIterations int
	prompt        PromptBuilder
	logger        *zap.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations sets the iteration ceiling. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n >= 1 {
			l.maxIterations = n
		}
	}
}

// WithPromptBuilder replaces the repair prompt construction.
func WithPromptBuilder(b PromptBuilder) Option {
	return func(l *Loop) {
		if b != nil {
			l.prompt = b
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New returns a Loop over the given collaborators.
func New(p Parser, g Generator, c Checker, opts ...Option) *Loop {
	l := &Loop{
		parser:        p,
		generator:     g,
		checker:       c,
		maxIterations: DefaultMaxIterations,
		prompt:        RepairPrompt,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("corrector")
	return l
}

// MaxIterations returns the loop's iteration ceiling.
func (l *Loop) MaxIterations() int { return l.maxIterations }

// Capped returns a copy of l with a different iteration ceiling. Values
// below 1 return l unchanged.
func (l *Loop) Capped(n int) *Loop {
	if n < 1 || n == l.maxIterations {
		return l
	}
	cp := *l
	cp.maxIterations = n
	return &cp
}

// candidate is one evaluated text, kept for best-so-far tracking.
type candidate struct {
	text       string
	violations []schema.Violation
	record     *schema.Record
}

// Correct runs the loop on text. A parse or generation failure aborts the
// run with an error wrapping schema.ErrParse or schema.ErrGeneration. Every
// other outcome returns a CorrectionResult; when the run cannot reach
// consistency it carries the evaluated text with the fewest violations.
func (l *Loop) Correct(ctx context.Context, text string) (*schema.CorrectionResult, error) {
	start := time.Now()
	current := text
	seen := make(map[string]int)
	steps := []schema.CorrectionStep{}
	var best *candidate

	finish := func(reason schema.StopReason, final candidate, iterations int) *schema.CorrectionResult {
		violations := final.violations
		if violations == nil {
			violations = []schema.Violation{}
		}
		res := &schema.CorrectionResult{
			OriginalText:         text,
			CorrectedText:        final.text,
			Consistent:           len(violations) == 0,
			Iterations:           iterations,
			MaxIterationsReached: reason == schema.StopMaxIterations,
			Reason:               reason,
			Steps:                steps,
			FinalViolations:      violations,
			FinalRecord:          final.record,
			Elapsed:              time.Since(start),
		}
		runsTotal.WithLabelValues(string(reason)).Inc()
		iterationsUsed.Observe(float64(iterations))
		l.logger.Info("correction finished",
			zap.String("reason", string(reason)),
			zap.Int("iterations", iterations),
			zap.Int("generation_calls", len(steps)),
			zap.Int("remaining_violations", len(violations)),
			zap.Duration("elapsed", res.Elapsed))
		return res
	}

	for i := 0; i < l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			runsTotal.WithLabelValues("canceled").Inc()
			return nil, fmt.Errorf("corrector: iteration %d: %w", i, err)
		}
		stepStart := time.Now()
		l.logger.Debug("evaluating", zap.Int("iteration", i), zap.Int("max", l.maxIterations))

		rec, err := l.parser.Parse(ctx, current)
		if err != nil {
			runsTotal.WithLabelValues("parse_error").Inc()
			return nil, fmt.Errorf("corrector: iteration %d: %w", i, mark(err, schema.ErrParse))
		}
		var values schema.Values
		if rec != nil {
			values = rec.Values
		}
		cr := l.checker.CheckConsistency(values)

		if best == nil || len(cr.Violations) < len(best.violations) {
			best = &candidate{text: current, violations: cr.Violations, record: rec}
		}

		if cr.Consistent {
			return finish(schema.StopConsistent, candidate{text: current, record: rec}, i+1), nil
		}

		fp := Fingerprint(current)
		if first, ok := seen[fp]; ok {
			l.logger.Warn("cycle detected",
				zap.Int("iteration", i),
				zap.Int("first_seen", first),
				zap.String("fingerprint", fp))
			return finish(schema.StopCycleDetected, *best, i+1), nil
		}
		seen[fp] = i

		prompt := l.prompt(current, cr.Violations, i)
		generationCalls.Inc()
		out, err := l.generator.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty completion")
		}
		if err != nil {
			runsTotal.WithLabelValues("generation_error").Inc()
			return nil, fmt.Errorf("corrector: iteration %d: %w", i, mark(err, schema.ErrGeneration))
		}
		out = strings.TrimSpace(out)

		steps = append(steps, schema.CorrectionStep{
			Iteration:  i,
			InputText:  current,
			OutputText: out,
			Violations: cr.Violations,
			Consistent: false,
			Elapsed:    time.Since(stepStart),
		})
		l.logger.Debug("repair generated",
			zap.Int("iteration", i),
			zap.Int("violations", len(cr.Violations)))
		current = out

		if i+1 == l.maxIterations {
			return finish(schema.StopMaxIterations, *best, i+1), nil
		}
	}
	// Unreachable for maxIterations >= 1; kept for a terminating statement.
	return finish(schema.StopMaxIterations, *best, l.maxIterations), nil
}

// mark wraps err with sentinel unless it already matches.
func mark(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
