// Package catalog holds the immutable set of domain constraints and
// evaluates value maps against it. A Catalog is never mutated after New and
// is safe for any number of concurrent readers.
package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dshills/logicguard/internal/schema"
)

// ErrUnknownConstraint is returned when a constraint id is not in the catalog.
var ErrUnknownConstraint = errors.New("catalog: unknown constraint")

// Catalog is an ordered, immutable collection of constraints.
type Catalog struct {
	name        string
	constraints []Constraint
	index       map[string]int
	parents     map[string]string
	root        string
}

// Option configures a Catalog at construction.
type Option func(*Catalog)

// WithHierarchy declares kind inheritance as child → parent. A constraint
// applying to a parent kind also applies to its children.
func WithHierarchy(parents map[string]string) Option {
	return func(c *Catalog) {
		for k, v := range parents {
			c.parents[k] = v
		}
	}
}

// WithRootKind names the kind every component implicitly descends from.
func WithRootKind(kind string) Option {
	return func(c *Catalog) { c.root = kind }
}

// New validates constraints and returns a catalog preserving their order.
func New(name string, constraints []Constraint, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		name:    name,
		index:   make(map[string]int, len(constraints)),
		parents: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, con := range constraints {
		if err := con.validate(); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		if _, dup := c.index[con.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate constraint id %q", name, con.ID)
		}
		c.index[con.ID] = len(c.constraints)
		c.constraints = append(c.constraints, con.clone())
	}
	if err := c.checkHierarchy(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	return c, nil
}

func (c *Catalog) checkHierarchy() error {
	for kind := range c.parents {
		seen := map[string]bool{}
		for k := kind; k != ""; k = c.parents[k] {
			if seen[k] {
				return fmt.Errorf("kind hierarchy loops at %q", k)
			}
			seen[k] = true
		}
	}
	return nil
}

// Name returns the catalog's name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of constraints.
func (c *Catalog) Len() int { return len(c.constraints) }

// All returns copies of every constraint in definition order.
func (c *Catalog) All() []Constraint {
	out := make([]Constraint, len(c.constraints))
	for i, con := range c.constraints {
		out[i] = con.clone()
	}
	return out
}

// Get returns a copy of the constraint with the given id.
func (c *Catalog) Get(id string) (Constraint, bool) {
	i, ok := c.index[id]
	if !ok {
		return Constraint{}, false
	}
	return c.constraints[i].clone(), true
}

// EvaluateOne evaluates a single constraint by id.
func (c *Catalog) EvaluateOne(id string, values schema.Values) (*schema.Violation, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConstraint, id)
	}
	return c.constraints[i].Evaluate(values), nil
}

// EvaluateAll evaluates every constraint and returns violations in
// definition order. When kinds are given, only constraints applying to at
// least one of them run.
func (c *Catalog) EvaluateAll(values schema.Values, kinds ...string) []schema.Violation {
	var out []schema.Violation
	c.each(kinds, func(con *Constraint) {
		if v := con.Evaluate(values); v != nil {
			out = append(out, *v)
		}
	})
	return out
}

// Count returns how many constraints EvaluateAll would run for kinds.
func (c *Catalog) Count(kinds ...string) int {
	n := 0
	c.each(kinds, func(*Constraint) { n++ })
	return n
}

func (c *Catalog) each(kinds []string, fn func(*Constraint)) {
	var lineages [][]string
	for _, k := range kinds {
		lineages = append(lineages, c.Lineage(k))
	}
	for i := range c.constraints {
		con := &c.constraints[i]
		if len(kinds) > 0 && !c.appliesToAny(con, lineages) {
			continue
		}
		fn(con)
	}
}

func (c *Catalog) appliesToAny(con *Constraint, lineages [][]string) bool {
	for _, l := range lineages {
		if appliesTo(con, l) {
			return true
		}
	}
	return false
}

func appliesTo(con *Constraint, lineage []string) bool {
	if len(con.AppliesTo) == 0 {
		return true
	}
	for _, k := range lineage {
		if slices.Contains(con.AppliesTo, k) {
			return true
		}
	}
	return false
}

// Lineage returns kind followed by its ancestors, ending with the root kind
// when one is configured.
func (c *Catalog) Lineage(kind string) []string {
	var out []string
	for k := kind; k != ""; k = c.parents[k] {
		out = append(out, k)
	}
	if c.root != "" && !slices.Contains(out, c.root) {
		out = append(out, c.root)
	}
	return out
}

// Applicable returns copies of the constraints that cover kind.
func (c *Catalog) Applicable(kind string) []Constraint {
	var out []Constraint
	c.each([]string{kind}, func(con *Constraint) {
		out = append(out, con.clone())
	})
	return out
}
