// Package verdict provides deterministic local logic for scoring and verdict
// determination. No LLM calls are made here.
package verdict

import (
	"fmt"
	"strings"

	"github.com/dshills/logicguard/internal/schema"
)

// ComputeScore calculates the quality score from violation counts.
// Start at 100; subtract 20 per error and 7 per warning; clamp to [0, 100].
func ComputeScore(errorCount, warningCount int) int {
	score := 100 - (errorCount * 20) - (warningCount * 7)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// VerdictOrdinal returns the numeric ordinal for a verdict, used to compare
// severity order. VALID=0, CORRECTED=1, PARTIALLY_CORRECTED=2, INVALID=3,
// ERROR=4. Used by --fail-on: exit 2 if VerdictOrdinal(actual) >=
// VerdictOrdinal(threshold).
func VerdictOrdinal(v schema.Verdict) int {
	switch v {
	case schema.VerdictValid:
		return 0
	case schema.VerdictCorrected:
		return 1
	case schema.VerdictPartiallyCorrected:
		return 2
	case schema.VerdictInvalid:
		return 3
	case schema.VerdictError:
		return 4
	default:
		return -1
	}
}

// ParseVerdict reads a verdict name case-insensitively.
func ParseVerdict(s string) (schema.Verdict, error) {
	v := schema.Verdict(strings.ToUpper(strings.TrimSpace(s)))
	if VerdictOrdinal(v) < 0 {
		return "", fmt.Errorf("verdict: unknown verdict %q", s)
	}
	return v, nil
}

// DetermineVerdict applies the verdict rules to a pipeline result.
//
// Rules (in order of precedence):
//  1. Extraction failed → ERROR
//  2. No remaining violations, text changed → CORRECTED
//  3. No remaining violations → VALID
//  4. Correction ran and removed at least one violation → PARTIALLY_CORRECTED
//  5. Otherwise → INVALID
func DetermineVerdict(r *schema.PipelineResult) schema.Verdict {
	if r == nil || r.ParseError != "" {
		return schema.VerdictError
	}
	if len(r.FinalViolations) == 0 {
		if r.WasCorrected() {
			return schema.VerdictCorrected
		}
		return schema.VerdictValid
	}
	if r.Correction != nil && r.InitialConsistency != nil &&
		len(r.FinalViolations) < len(r.InitialConsistency.Violations) {
		return schema.VerdictPartiallyCorrected
	}
	return schema.VerdictInvalid
}

// EscalateSeverity escalates a violation's severity in strict mode:
// warning → error. Outside strict mode the violation is unchanged.
func EscalateSeverity(v schema.Violation, strict bool) schema.Violation {
	if strict && v.Severity == schema.SeverityWarning {
		v.Severity = schema.SeverityError
	}
	return v
}

// Escalate returns a copy of vs with EscalateSeverity applied to each.
func Escalate(vs []schema.Violation, strict bool) []schema.Violation {
	out := make([]schema.Violation, len(vs))
	for i, v := range vs {
		out[i] = EscalateSeverity(v, strict)
	}
	return out
}

// CountSeverities aggregates severity counts across violations.
func CountSeverities(vs []schema.Violation) (errors, warnings int) {
	for _, v := range vs {
		switch v.Severity {
		case schema.SeverityWarning:
			warnings++
		default:
			errors++
		}
	}
	return
}
