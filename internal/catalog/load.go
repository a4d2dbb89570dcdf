package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/logicguard/internal/schema"
)

// fileDoc is the on-disk YAML form of a catalog.
type fileDoc struct {
	Name        string            `yaml:"name" validate:"required"`
	RootKind    string            `yaml:"root_kind"`
	Hierarchy   map[string]string `yaml:"hierarchy"`
	Constraints []fileConstraint  `yaml:"constraints" validate:"required,min=1,dive"`
}

type fileConstraint struct {
	ID          string        `yaml:"id" validate:"required"`
	Name        string        `yaml:"name" validate:"required"`
	Category    string        `yaml:"category" validate:"required,oneof=range relational physical type temporal"`
	Expression  string        `yaml:"expression" validate:"required"`
	Description string        `yaml:"description"`
	Severity    string        `yaml:"severity" validate:"omitempty,oneof=error warning"`
	AppliesTo   []string      `yaml:"applies_to"`
	Predicate   filePredicate `yaml:"predicate"`
}

type filePredicate struct {
	Kind       string         `yaml:"kind" validate:"required,oneof=range physical relational type"`
	Property   *fileProperty  `yaml:"property" validate:"required_if=Kind range,required_if=Kind physical"`
	Unit       string         `yaml:"unit"`
	Min        *fileBound     `yaml:"min"`
	Max        *fileBound     `yaml:"max"`
	Left       *fileProperty  `yaml:"left" validate:"required_if=Kind relational"`
	Op         string         `yaml:"op" validate:"required_if=Kind relational"`
	Right      *fileProperty  `yaml:"right" validate:"required_if=Kind relational"`
	Properties []fileProperty `yaml:"properties" validate:"required_if=Kind type,dive"`
	Expect     string         `yaml:"expect" validate:"required_if=Kind type"`
	Required   bool           `yaml:"required"`
}

// fileProperty accepts either a bare name or {name, aliases}.
type fileProperty struct {
	Name    string   `yaml:"name" validate:"required"`
	Aliases []string `yaml:"aliases"`
}

func (p *fileProperty) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		p.Name = n.Value
		return nil
	}
	type plain fileProperty
	return n.Decode((*plain)(p))
}

type fileBound struct {
	Value     float64 `yaml:"value"`
	Inclusive bool    `yaml:"inclusive"`
	Category  string  `yaml:"category" validate:"omitempty,oneof=range relational physical type temporal"`
}

var validate = validator.New()

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a YAML catalog document and builds the catalog.
func Decode(r io.Reader) (*Catalog, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("catalog: invalid document: %w", err)
	}

	constraints := make([]Constraint, 0, len(doc.Constraints))
	for _, fc := range doc.Constraints {
		pred, err := fc.Predicate.build()
		if err != nil {
			return nil, fmt.Errorf("catalog: constraint %s: %w", fc.ID, err)
		}
		constraints = append(constraints, Constraint{
			ID:          fc.ID,
			Name:        fc.Name,
			Category:    schema.Category(fc.Category),
			Expression:  fc.Expression,
			Description: fc.Description,
			Severity:    schema.Severity(fc.Severity),
			AppliesTo:   fc.AppliesTo,
			Predicate:   pred,
		})
	}

	var opts []Option
	if len(doc.Hierarchy) > 0 {
		opts = append(opts, WithHierarchy(doc.Hierarchy))
	}
	if doc.RootKind != "" {
		opts = append(opts, WithRootKind(doc.RootKind))
	}
	return New(doc.Name, constraints, opts...)
}

func (fp filePredicate) build() (Predicate, error) {
	prop := func(p *fileProperty) Property {
		if p == nil {
			return Property{}
		}
		return Property{Name: p.Name, Aliases: p.Aliases}
	}
	bound := func(b *fileBound) *Bound {
		if b == nil {
			return nil
		}
		return &Bound{Value: b.Value, Inclusive: b.Inclusive, Category: schema.Category(b.Category)}
	}

	switch PredicateKind(fp.Kind) {
	case KindRange:
		return Range(prop(fp.Property), bound(fp.Min), bound(fp.Max)), nil
	case KindPhysical:
		return Physical(prop(fp.Property), fp.Unit, bound(fp.Min), bound(fp.Max)), nil
	case KindRelational:
		return Relational(prop(fp.Left), Op(fp.Op), prop(fp.Right)), nil
	case KindType:
		k, err := schema.ParseKind(fp.Expect)
		if err != nil {
			return Predicate{}, err
		}
		props := make([]Property, len(fp.Properties))
		for i := range fp.Properties {
			props[i] = prop(&fp.Properties[i])
		}
		p := TypeOf(k, props...)
		p.Required = fp.Required
		return p, nil
	}
	return Predicate{}, fmt.Errorf("unknown predicate kind %q", fp.Kind)
}
