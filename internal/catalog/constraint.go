package catalog

import (
	"fmt"
	"strings"

	"github.com/dshills/logicguard/internal/schema"
)

// PredicateKind enumerates the predicate shapes a constraint can take.
type PredicateKind string

const (
	// KindRange bounds a plain numeric property.
	KindRange PredicateKind = "range"
	// KindPhysical bounds a measured quantity carrying a unit.
	KindPhysical PredicateKind = "physical"
	// KindRelational compares two properties (numbers or dates).
	KindRelational PredicateKind = "relational"
	// KindType requires properties to hold a given value kind.
	KindType PredicateKind = "type"
)

// Op is a comparison operator used by relational predicates.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		return true
	}
	return false
}

// holds reports whether cmp (-1, 0, 1 for a<b, a==b, a>b) satisfies o.
func (o Op) holds(cmp int) bool {
	switch o {
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	}
	return false
}

// Property names a value in the flat value map. Violations always report
// Name; Aliases are consulted in order when Name is absent.
type Property struct {
	Name    string
	Aliases []string
}

// P is shorthand for a Property.
func P(name string, aliases ...string) Property {
	return Property{Name: name, Aliases: aliases}
}

func (p Property) clone() Property {
	p.Aliases = append([]string(nil), p.Aliases...)
	return p
}

func (p Property) lookup(values schema.Values) schema.Value {
	v, _ := values.Lookup(append([]string{p.Name}, p.Aliases...)...)
	return v
}

// Bound is one side of a numeric interval. A non-empty Category overrides
// the constraint's category for violations of this side.
type Bound struct {
	Value     float64
	Inclusive bool
	Category  schema.Category
}

// Inclusive returns a closed bound at v.
func Inclusive(v float64) *Bound { return &Bound{Value: v, Inclusive: true} }

// Exclusive returns an open bound at v.
func Exclusive(v float64) *Bound { return &Bound{Value: v} }

// As returns a copy of b that reports violations under category c.
func (b *Bound) As(c schema.Category) *Bound {
	cp := *b
	cp.Category = c
	return &cp
}

// Predicate is the declarative test a constraint applies. Which fields are
// meaningful depends on Kind.
type Predicate struct {
	Kind PredicateKind

	// range, physical
	Property Property
	Min, Max *Bound
	Unit     string

	// relational
	Left  Property
	Op    Op
	Right Property

	// type
	Properties []Property
	Expect     schema.Kind
	Required   bool
}

// Range builds a range predicate over p.
func Range(p Property, lo, hi *Bound) Predicate {
	return Predicate{Kind: KindRange, Property: p, Min: lo, Max: hi}
}

// Physical builds a bounded physical quantity predicate over p.
func Physical(p Property, unit string, lo, hi *Bound) Predicate {
	return Predicate{Kind: KindPhysical, Property: p, Unit: unit, Min: lo, Max: hi}
}

// Relational builds a predicate asserting left op right.
func Relational(left Property, op Op, right Property) Predicate {
	return Predicate{Kind: KindRelational, Left: left, Op: op, Right: right}
}

// TypeOf builds a predicate requiring every present property in ps to hold
// a value of kind k.
func TypeOf(k schema.Kind, ps ...Property) Predicate {
	return Predicate{Kind: KindType, Properties: ps, Expect: k}
}

// MustBePresent returns a copy of a type predicate under which absent
// properties are violations.
func (p Predicate) MustBePresent() Predicate {
	p.Required = true
	return p
}

func (p Predicate) validate() error {
	switch p.Kind {
	case KindRange, KindPhysical:
		if p.Property.Name == "" {
			return fmt.Errorf("%s predicate: property is required", p.Kind)
		}
		if p.Min == nil && p.Max == nil {
			return fmt.Errorf("%s predicate: at least one bound is required", p.Kind)
		}
		if p.Min != nil && p.Max != nil && p.Min.Value > p.Max.Value {
			return fmt.Errorf("%s predicate: min %s exceeds max %s", p.Kind,
				schema.FormatNumber(p.Min.Value), schema.FormatNumber(p.Max.Value))
		}
		for _, b := range []*Bound{p.Min, p.Max} {
			if b != nil && b.Category != "" && !b.Category.Valid() {
				return fmt.Errorf("%s predicate: unknown bound category %q", p.Kind, b.Category)
			}
		}
	case KindRelational:
		if p.Left.Name == "" || p.Right.Name == "" {
			return fmt.Errorf("relational predicate: left and right properties are required")
		}
		if !p.Op.Valid() {
			return fmt.Errorf("relational predicate: unknown operator %q", p.Op)
		}
	case KindType:
		if len(p.Properties) == 0 {
			return fmt.Errorf("type predicate: at least one property is required")
		}
		for _, prop := range p.Properties {
			if prop.Name == "" {
				return fmt.Errorf("type predicate: property name is required")
			}
		}
		if p.Expect == schema.KindAbsent {
			return fmt.Errorf("type predicate: expected kind is required")
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// Constraint is a named declarative rule over a value map. Constraints are
// values; a Catalog hands out copies and never mutates them.
type Constraint struct {
	ID          string
	Name        string
	Category    schema.Category
	Expression  string
	Description string
	Severity    schema.Severity
	// AppliesTo lists component kinds the rule covers. Empty means all kinds.
	AppliesTo []string
	Predicate Predicate
}

// Evaluate applies the constraint to values and returns the violation it
// finds, or nil. Absent properties pass. Values of the wrong kind pass range,
// physical and relational predicates and fail type predicates.
func (c Constraint) Evaluate(values schema.Values) *schema.Violation {
	switch c.Predicate.Kind {
	case KindRange, KindPhysical:
		return c.evalBounds(values)
	case KindRelational:
		return c.evalRelational(values)
	case KindType:
		return c.evalType(values)
	}
	return nil
}

func (c Constraint) violation(cat schema.Category, prop string, actual schema.Value, expected, msg string) *schema.Violation {
	if cat == "" {
		cat = c.Category
	}
	sev := c.Severity
	if sev == "" {
		sev = schema.SeverityError
	}
	return &schema.Violation{
		Category:   cat,
		Constraint: c.ID,
		Expression: c.Expression,
		Message:    msg,
		Property:   prop,
		Actual:     actual,
		Expected:   expected,
		Severity:   sev,
	}
}

func (c Constraint) evalBounds(values schema.Values) *schema.Violation {
	p := c.Predicate
	v := p.Property.lookup(values)
	f, ok := v.Float()
	if !ok {
		return nil
	}
	withUnit := func(s string) string {
		if p.Unit == "" {
			return s
		}
		return s + " " + p.Unit
	}
	if b := p.Min; b != nil && (f < b.Value || (!b.Inclusive && f == b.Value)) {
		op := ">="
		if !b.Inclusive {
			op = ">"
		}
		expected := withUnit(op + " " + schema.FormatNumber(b.Value))
		msg := fmt.Sprintf("%s (%s) is below the allowed minimum: must be %s",
			p.Property.Name, withUnit(v.String()), expected)
		return c.violation(b.Category, p.Property.Name, v, expected, msg)
	}
	if b := p.Max; b != nil && (f > b.Value || (!b.Inclusive && f == b.Value)) {
		op := "<="
		if !b.Inclusive {
			op = "<"
		}
		expected := withUnit(op + " " + schema.FormatNumber(b.Value))
		msg := fmt.Sprintf("%s (%s) exceeds the allowed maximum: must be %s",
			p.Property.Name, withUnit(v.String()), expected)
		return c.violation(b.Category, p.Property.Name, v, expected, msg)
	}
	return nil
}

func (c Constraint) evalRelational(values schema.Values) *schema.Violation {
	p := c.Predicate
	l := p.Left.lookup(values)
	r := p.Right.lookup(values)
	cmp, ok := compare(l, r)
	if !ok || p.Op.holds(cmp) {
		return nil
	}
	expected := string(p.Op) + " " + r.String()
	msg := fmt.Sprintf("%s (%s) must be %s %s (%s)",
		p.Left.Name, l.String(), p.Op, p.Right.Name, r.String())
	return c.violation("", p.Left.Name, l, expected, msg)
}

// compare orders two values of the same comparable kind.
func compare(a, b schema.Value) (int, bool) {
	if af, ok := a.Float(); ok {
		bf, ok := b.Float()
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if at, ok := a.Time(); ok {
		bt, ok := b.Time()
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	return 0, false
}

func (c Constraint) evalType(values schema.Values) *schema.Violation {
	p := c.Predicate
	for _, prop := range p.Properties {
		v := prop.lookup(values)
		if v.IsAbsent() {
			if p.Required {
				return c.violation("", prop.Name, v, p.Expect.String(),
					fmt.Sprintf("%s is required but missing", prop.Name))
			}
			continue
		}
		if v.Kind() != p.Expect {
			return c.violation("", prop.Name, v, p.Expect.String(),
				fmt.Sprintf("%s must be a %s, got %s %q", prop.Name, p.Expect, v.Kind(), v.String()))
		}
	}
	return nil
}

// String returns "[ID] Name" for logs and listings.
func (c Constraint) String() string {
	return fmt.Sprintf("[%s] %s", c.ID, c.Name)
}

func (c Constraint) clone() Constraint {
	c.AppliesTo = append([]string(nil), c.AppliesTo...)
	c.Predicate.Properties = append([]Property(nil), c.Predicate.Properties...)
	for i := range c.Predicate.Properties {
		c.Predicate.Properties[i] = c.Predicate.Properties[i].clone()
	}
	c.Predicate.Property = c.Predicate.Property.clone()
	c.Predicate.Left = c.Predicate.Left.clone()
	c.Predicate.Right = c.Predicate.Right.clone()
	if c.Predicate.Min != nil {
		lo := *c.Predicate.Min
		c.Predicate.Min = &lo
	}
	if c.Predicate.Max != nil {
		hi := *c.Predicate.Max
		c.Predicate.Max = &hi
	}
	return c
}

func (c Constraint) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("constraint id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("constraint %s: name is required", c.ID)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("constraint %s: unknown category %q", c.ID, c.Category)
	}
	switch c.Severity {
	case "", schema.SeverityError, schema.SeverityWarning:
	default:
		return fmt.Errorf("constraint %s: unknown severity %q", c.ID, c.Severity)
	}
	if err := c.Predicate.validate(); err != nil {
		return fmt.Errorf("constraint %s: %w", c.ID, err)
	}
	return nil
}
