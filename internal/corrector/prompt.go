package corrector

import (
	"fmt"
	"strings"

	"github.com/dshills/logicguard/internal/schema"
)

// PromptBuilder renders the repair prompt for one iteration.
type PromptBuilder func(text string, violations []schema.Violation, iteration int) string

// SystemPrompt is the default system prompt for repair generation.
const SystemPrompt = `You are an expert for technical documentation and maintenance records.
Your task is to correct logical errors in technical texts.

RULES:
1. Correct ONLY the flagged errors
2. Keep correct information unchanged
3. Make sure the corrected values are physically and logically plausible
4. Keep the original style and format
5. Respond ONLY with the corrected text, without explanations`

// RepairPrompt builds a prompt whose instructions tighten as iterations
// progress: a generic request first, then the violated constraint
// expressions, then explicit per-property targets.
func RepairPrompt(text string, violations []schema.Violation, iteration int) string {
	var b strings.Builder
	b.WriteString("The following technical text contains logical errors or inconsistencies:\n\n")
	b.WriteString("ORIGINAL:\n")
	b.WriteString(text)
	b.WriteString("\n\nDETECTED PROBLEMS:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ToUpper(string(v.Category)), v.Message)
	}
	b.WriteString("\nREQUIREMENTS:\n")

	switch {
	case iteration <= 0:
		b.WriteString("Correct the text so that every detected problem is fixed.\n")
	case iteration == 1:
		b.WriteString("The previous correction was not sufficient. The corrected text must satisfy these constraints:\n")
		for _, expr := range expressions(violations) {
			fmt.Fprintf(&b, "- %s\n", expr)
		}
	default:
		b.WriteString("Earlier corrections failed. Apply exactly these changes:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s\n", instruction(v))
		}
	}

	b.WriteString("- Keep all correct information UNCHANGED\n")
	b.WriteString("- Change ONLY the incorrect values or statements\n")
	b.WriteString("- Keep the format of the original\n")
	b.WriteString("- Answer with the corrected text only\n")
	b.WriteString("\nCORRECTED TEXT:")
	return b.String()
}

// expressions returns the distinct constraint expressions in first-seen order.
func expressions(violations []schema.Violation) []string {
	seen := make(map[string]bool, len(violations))
	var out []string
	for _, v := range violations {
		e := v.Expression
		if e == "" {
			e = v.Message
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

func instruction(v schema.Violation) string {
	if v.Property == "" {
		return v.Message
	}
	if v.Actual.IsAbsent() {
		return fmt.Sprintf("Add a value for %s (%s)", v.Property, v.Expected)
	}
	if v.Category == schema.CategoryType {
		return fmt.Sprintf("Replace %s (currently %q) with a %s value", v.Property, v.Actual.String(), v.Expected)
	}
	if v.Expected == "" {
		return fmt.Sprintf("Fix %s (currently %s): %s", v.Property, v.Actual.String(), v.Message)
	}
	return fmt.Sprintf("Change %s (currently %s) so that it is %s", v.Property, v.Actual.String(), v.Expected)
}
