package render

import (
	"github.com/dshills/logicguard/internal/schema"
	"github.com/dshills/logicguard/internal/verdict"
)

// ToolName is the value of Report.Tool.
const ToolName = "logicguard"

// ReportOptions carries the run context that is not part of a PipelineResult.
type ReportOptions struct {
	Version     string
	Profile     string
	Model       string
	AutoCorrect bool
	Strict      bool
	// Checked is the number of constraints in the catalog.
	Checked int
}

// BuildReport assembles the output document for a pipeline result. Severity
// escalation, verdict and score are applied here. A nil result with a
// non-nil err yields an ERROR report.
func BuildReport(res *schema.PipelineResult, err error, opts ReportOptions) *schema.Report {
	rep := &schema.Report{
		Tool:       ToolName,
		Version:    opts.Version,
		Input:      schema.Input{Profile: opts.Profile, AutoCorrect: opts.AutoCorrect, Strict: opts.Strict},
		Violations: []schema.Violation{},
		Meta:       schema.Meta{Model: opts.Model},
	}
	if res == nil {
		rep.Summary.Verdict = schema.VerdictError
		if err != nil {
			rep.Error = err.Error()
		}
		return rep
	}

	rep.Input.Text = res.OriginalText
	rep.Meta.RunID = res.RunID
	rep.Meta.ProcessingTimeMS = float64(res.Elapsed.Microseconds()) / 1000

	final := verdict.Escalate(res.FinalViolations, opts.Strict)
	errCount, warnCount := verdict.CountSeverities(final)
	rep.Violations = final
	rep.Summary = schema.Summary{
		Verdict:            verdict.DetermineVerdict(res),
		Score:              verdict.ComputeScore(errCount, warnCount),
		ErrorCount:         errCount,
		WarningCount:       warnCount,
		CheckedConstraints: opts.Checked,
		Iterations:         res.Iterations(),
	}
	rep.Data = res.FinalRecord
	if rep.Data == nil {
		rep.Data = res.Record
	}

	if c := res.Correction; c != nil {
		corr := &schema.Correction{
			CorrectedText:        c.CorrectedText,
			Reason:               c.Reason,
			MaxIterationsReached: c.MaxIterationsReached,
		}
		for _, s := range c.Steps {
			corr.History = append(corr.History, schema.Iteration{
				Number:          s.Iteration + 1,
				ViolationsCount: len(s.Violations),
				CorrectedText:   s.OutputText,
			})
		}
		rep.Correction = corr
	}

	switch {
	case err != nil:
		rep.Error = err.Error()
		rep.Summary.Verdict = schema.VerdictError
	case res.ParseError != "":
		rep.Error = res.ParseError
	}
	return rep
}
