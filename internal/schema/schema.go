// Package schema defines the canonical data types shared by the catalog,
// the reasoning engine, the correction loop and the delivery layers.
package schema

import "time"

// Category classifies a constraint and the violations it produces.
type Category string

const (
	CategoryRange      Category = "range"
	CategoryRelational Category = "relational"
	CategoryPhysical   Category = "physical"
	CategoryType       Category = "type"
	CategoryTemporal   Category = "temporal"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRange, CategoryRelational, CategoryPhysical, CategoryType, CategoryTemporal:
		return true
	}
	return false
}

// Severity represents the severity level of a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation records one failed constraint evaluation.
type Violation struct {
	Category   Category `json:"category"`
	Constraint string   `json:"constraint_id"`
	Expression string   `json:"expression"`
	Message    string   `json:"message"`
	Property   string   `json:"property,omitempty"`
	Actual     Value    `json:"actual_value"`
	Expected   string   `json:"expected_value,omitempty"`
	Severity   Severity `json:"severity"`
	Entity     string   `json:"entity,omitempty"`
}

// ConsistencyResult is the outcome of one evaluation pass.
type ConsistencyResult struct {
	Consistent bool          `json:"is_consistent"`
	Violations []Violation   `json:"violations"`
	Checked    int           `json:"checked_constraints"`
	Elapsed    time.Duration `json:"-"`
}

// CorrectionStep records one generation round of the correction loop: the
// text that was evaluated, what the evaluation found, and the text the
// generator produced from it.
type CorrectionStep struct {
	Iteration  int           `json:"iteration"`
	InputText  string        `json:"input_text"`
	OutputText string        `json:"output_text"`
	Violations []Violation   `json:"violations"`
	Consistent bool          `json:"is_consistent"`
	Elapsed    time.Duration `json:"-"`
}

// StopReason explains why a correction run terminated.
type StopReason string

const (
	StopConsistent    StopReason = "consistent"
	StopCycleDetected StopReason = "cycle_detected"
	StopMaxIterations StopReason = "max_iterations"
)

// CorrectionResult is the terminal state of a correction run.
type CorrectionResult struct {
	OriginalText         string           `json:"original_text"`
	CorrectedText        string           `json:"corrected_text"`
	Consistent           bool             `json:"is_consistent"`
	Iterations           int              `json:"iterations"`
	MaxIterationsReached bool             `json:"max_iterations_reached"`
	Reason               StopReason       `json:"stop_reason"`
	Steps                []CorrectionStep `json:"steps"`
	FinalViolations      []Violation      `json:"final_violations"`
	FinalRecord          *Record          `json:"-"`
	Elapsed              time.Duration    `json:"-"`
}

// WasCorrected reports whether the returned text differs from the input.
func (r *CorrectionResult) WasCorrected() bool {
	return r.OriginalText != r.CorrectedText
}

// StopErr returns the sentinel matching a best-effort termination, or nil
// when the run ended consistent.
func (r *CorrectionResult) StopErr() error {
	switch r.Reason {
	case StopCycleDetected:
		return ErrCycleDetected
	case StopMaxIterations:
		return ErrMaxIterations
	}
	return nil
}

// Component is the technical component described by a text.
type Component struct {
	Name                string   `json:"name"`
	Kind                string   `json:"type"`
	SerialNumber        string   `json:"serial_number,omitempty"`
	Status              string   `json:"status,omitempty"`
	OperatingHours      *float64 `json:"operating_hours,omitempty"`
	MaxLifespan         *float64 `json:"max_lifespan,omitempty"`
	MaintenanceInterval *float64 `json:"maintenance_interval,omitempty"`
}

// Measurement is a measured quantity with its unit.
type Measurement struct {
	Kind  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Maintenance describes the maintenance event mentioned in a text.
type Maintenance struct {
	Date        string `json:"date,omitempty"`
	NextDate    string `json:"next_date,omitempty"`
	Description string `json:"description,omitempty"`
	Technician  string `json:"technician,omitempty"`
}

// Record is the structured form of a text produced by a parser. Values is
// the flat property map the reasoning engine evaluates.
type Record struct {
	Component    *Component    `json:"component,omitempty"`
	Measurements []Measurement `json:"measurements,omitempty"`
	Maintenance  *Maintenance  `json:"maintenance,omitempty"`
	Values       Values        `json:"values"`
	Confidence   float64       `json:"extraction_confidence"`
}

// PipelineResult is the externally visible outcome of one orchestrator run.
type PipelineResult struct {
	RunID              string             `json:"run_id"`
	OriginalText       string             `json:"original_text"`
	Record             *Record            `json:"parsed_data,omitempty"`
	ParseError         string             `json:"parse_error,omitempty"`
	InitialConsistency *ConsistencyResult `json:"initial_consistency,omitempty"`
	Correction         *CorrectionResult  `json:"correction,omitempty"`
	FinalText          string             `json:"final_text"`
	FinalRecord        *Record            `json:"final_parsed_data,omitempty"`
	FinalViolations    []Violation        `json:"final_violations"`
	Elapsed            time.Duration      `json:"-"`
}

// IsValid reports whether the final text satisfies every constraint.
func (r *PipelineResult) IsValid() bool {
	return r.ParseError == "" && len(r.FinalViolations) == 0
}

// WasCorrected reports whether the final text differs from the input.
func (r *PipelineResult) WasCorrected() bool {
	return r.OriginalText != r.FinalText
}

// Iterations returns the number of evaluation rounds the run used.
func (r *PipelineResult) Iterations() int {
	if r.Correction != nil {
		return r.Correction.Iterations
	}
	return 1
}
