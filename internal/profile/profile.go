// Package profile defines domain profiles. A profile bundles the constraint
// catalog, the extraction schema shown to the parser and the system prompt
// used for repairs.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/logicguard/internal/catalog"
	"github.com/dshills/logicguard/internal/corrector"
	"github.com/dshills/logicguard/internal/parser"
)

// ErrUnknown is returned by Load for names that are not built in.
var ErrUnknown = errors.New("profile: unknown profile")

// Profile describes a validation domain.
type Profile struct {
	Name             string
	Description      string
	ExtractionSchema string
	// SystemPromptAddendum is appended to the repair system prompt.
	SystemPromptAddendum string
	// StrictSeverity, when true, causes warnings to be escalated to errors
	// before scoring.
	StrictSeverity bool

	constraints func() []catalog.Constraint
}

// Catalog builds the profile's constraint catalog. A non-empty file
// replaces the built-in constraints.
func (p Profile) Catalog(file string) (*catalog.Catalog, error) {
	if file != "" {
		c, err := catalog.Load(file)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		return c, nil
	}
	c, err := catalog.New(p.Name, p.constraints(),
		catalog.WithHierarchy(catalog.MaintenanceHierarchy),
		catalog.WithRootKind("Component"))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return c, nil
}

// RepairSystemPrompt returns the system prompt for repair generation.
func (p Profile) RepairSystemPrompt() string {
	if p.SystemPromptAddendum == "" {
		return corrector.SystemPrompt
	}
	return corrector.SystemPrompt + "\n\n" + p.SystemPromptAddendum
}

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"maintenance": {
		Name:             "maintenance",
		Description:      "Default profile; maintenance records of motors, pumps, sensors and valves.",
		ExtractionSchema: parser.DefaultSchema,
		constraints:      catalog.MaintenanceConstraints,
	},
	"maintenance-strict": {
		Name:             "maintenance-strict",
		Description:      "Maintenance records with warnings, such as mistyped values, treated as errors.",
		ExtractionSchema: parser.DefaultSchema,
		SystemPromptAddendum: "Strict mode is active. Every flagged value must be brought inside its " +
			"limits; do not leave borderline values untouched.",
		StrictSeverity: true,
		constraints:    catalog.MaintenanceConstraints,
	},
	"hydraulics": {
		Name:             "hydraulics",
		Description:      "Hydraulic pumps; lifecycle and pressure rules only.",
		ExtractionSchema: parser.DefaultSchema,
		SystemPromptAddendum: "The texts describe hydraulic pumps. Standard hydraulic systems operate " +
			"between 0 and 350 bar.",
		constraints: func() []catalog.Constraint {
			return subset(catalog.MaintenanceConstraints(), "C1", "C2", "C3", "C4", "C5", "C6", "C9")
		},
	},
}

func subset(all []catalog.Constraint, ids ...string) []catalog.Constraint {
	var out []catalog.Constraint
	for _, c := range all {
		if slices.Contains(ids, c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the built-in profile names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Load returns the named built-in profile or an error if the name is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (available: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	return p, nil
}
