// Package render produces output from a fully assembled schema.Report.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/logicguard/internal/schema"
)

// RenderJSON produces a pretty-printed JSON representation of the report.
func RenderJSON(report *schema.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render: nil report")
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a GitHub-flavoured Markdown summary of the report.
// Every violated constraint id present in the report appears in the output.
func RenderMarkdown(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("## LogicGuard Report\n\n")
	fmt.Fprintf(&sb, "**Verdict:** %s  \n", report.Summary.Verdict)
	fmt.Fprintf(&sb, "**Score:** %d/100  \n", report.Summary.Score)
	fmt.Fprintf(&sb, "**Errors:** %d | **Warnings:** %d | **Iterations:** %d\n\n",
		report.Summary.ErrorCount, report.Summary.WarningCount, report.Summary.Iterations)

	if report.Error != "" {
		fmt.Fprintf(&sb, "**Error:** %s\n\n", mdEscape(report.Error))
	}

	if len(report.Violations) > 0 {
		sb.WriteString("## Violations\n\n")
		sb.WriteString("| Constraint | Category | Severity | Message |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, v := range report.Violations {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				v.Constraint, v.Category, v.Severity, mdEscape(v.Message))
		}
		sb.WriteString("\n")
	}

	if c := report.Correction; c != nil {
		sb.WriteString("## Correction\n\n")
		fmt.Fprintf(&sb, "**Stopped:** %s\n\n", c.Reason)
		if len(c.History) > 0 {
			sb.WriteString("| Iteration | Violations |\n")
			sb.WriteString("|---|---|\n")
			for _, it := range c.History {
				fmt.Fprintf(&sb, "| %d | %d |\n", it.Number, it.ViolationsCount)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("<details>\n<summary>Corrected text</summary>\n\n```\n")
		sb.WriteString(c.CorrectedText)
		sb.WriteString("\n```\n\n</details>\n\n")
	}

	return sb.String()
}

// RenderText produces a plain terminal summary.
func RenderText(report *schema.Report) string {
	if report == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verdict: %s (score %d/100)\n", report.Summary.Verdict, report.Summary.Score)
	fmt.Fprintf(&sb, "Checked %d constraints, %d error(s), %d warning(s), %d iteration(s)\n",
		report.Summary.CheckedConstraints, report.Summary.ErrorCount,
		report.Summary.WarningCount, report.Summary.Iterations)
	if report.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", report.Error)
	}
	for _, v := range report.Violations {
		fmt.Fprintf(&sb, "  [%s] %s %s: %s\n", v.Severity, v.Constraint, v.Category, v.Message)
	}
	if c := report.Correction; c != nil {
		fmt.Fprintf(&sb, "\nCorrection stopped: %s\n", c.Reason)
		fmt.Fprintf(&sb, "Corrected text:\n%s\n", c.CorrectedText)
	}
	return sb.String()
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
