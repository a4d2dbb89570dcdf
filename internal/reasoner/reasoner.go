// Package reasoner wraps a constraint catalog with timing, aggregation and
// introspection. It makes no external calls.
package reasoner

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/catalog"
	"github.com/dshills/logicguard/internal/schema"
)

// Engine checks value maps against a catalog. It holds no mutable state and
// may be shared across goroutines.
type Engine struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine over c.
func New(c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("reasoner")
	e.logger.Debug("engine ready",
		zap.String("catalog", c.Name()),
		zap.Int("constraints", c.Len()))
	return e
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// CheckConsistency evaluates values against the full catalog.
func (e *Engine) CheckConsistency(values schema.Values) schema.ConsistencyResult {
	start := time.Now()

	violations := e.catalog.EvaluateAll(values)
	if violations == nil {
		violations = []schema.Violation{}
	}
	if name, ok := values.Get("name").Text(); ok {
		for i := range violations {
			violations[i].Entity = name
		}
	}

	res := schema.ConsistencyResult{
		Consistent: len(violations) == 0,
		Violations: violations,
		Checked:    e.catalog.Len(),
		Elapsed:    time.Since(start),
	}

	checksTotal.Inc()
	checkDuration.Observe(res.Elapsed.Seconds())
	for _, v := range violations {
		violationsTotal.WithLabelValues(string(v.Category)).Inc()
		e.logger.Debug("constraint violated",
			zap.String("constraint", v.Constraint),
			zap.String("property", v.Property),
			zap.String("message", v.Message))
	}
	e.logger.Debug("consistency check complete",
		zap.Int("checked", res.Checked),
		zap.Int("violations", len(violations)),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// CheckSingleConstraint re-evaluates one constraint by id.
func (e *Engine) CheckSingleConstraint(id string, values schema.Values) (*schema.Violation, error) {
	return e.catalog.EvaluateOne(id, values)
}

// ApplicableConstraints lists the constraints covering a component kind.
func (e *Engine) ApplicableConstraints(kind string) []catalog.Constraint {
	return e.catalog.Applicable(kind)
}

// ConstraintInfo is the display form of a constraint.
type ConstraintInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    schema.Category `json:"type"`
	Expression  string          `json:"expression"`
	Description string          `json:"description"`
	Severity    schema.Severity `json:"severity"`
	AppliesTo   []string        `json:"applies_to,omitempty"`
}

// ConstraintsSummary describes every constraint in catalog order.
func (e *Engine) ConstraintsSummary() []ConstraintInfo {
	all := e.catalog.All()
	out := make([]ConstraintInfo, len(all))
	for i, c := range all {
		sev := c.Severity
		if sev == "" {
			sev = schema.SeverityError
		}
		out[i] = ConstraintInfo{
			ID:          c.ID,
			Name:        c.Name,
			Category:    c.Category,
			Expression:  c.Expression,
			Description: c.Description,
			Severity:    sev,
			AppliesTo:   c.AppliesTo,
		}
	}
	return out
}
