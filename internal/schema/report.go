package schema

// Verdict represents the overall outcome of a validation run.
type Verdict string

const (
	VerdictValid              Verdict = "VALID"
	VerdictCorrected          Verdict = "CORRECTED"
	VerdictPartiallyCorrected Verdict = "PARTIALLY_CORRECTED"
	VerdictInvalid            Verdict = "INVALID"
	VerdictError              Verdict = "ERROR"
)

// Report is the top-level output document rendered by the delivery layers.
type Report struct {
	Tool       string      `json:"tool"`
	Version    string      `json:"version"`
	Input      Input       `json:"input"`
	Summary    Summary     `json:"summary"`
	Violations []Violation `json:"violations"`
	Correction *Correction `json:"correction,omitempty"`
	Data       *Record     `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Meta       Meta        `json:"meta"`
}

// Input records the parameters used for this run.
type Input struct {
	Text        string `json:"text"`
	Profile     string `json:"profile"`
	AutoCorrect bool   `json:"auto_correct"`
	Strict      bool   `json:"strict"`
}

// Summary holds the computed verdict and violation counts.
type Summary struct {
	Verdict            Verdict `json:"verdict"`
	Score              int     `json:"score"`
	ErrorCount         int     `json:"error_count"`
	WarningCount       int     `json:"warning_count"`
	CheckedConstraints int     `json:"checked_constraints"`
	Iterations         int     `json:"iterations"`
}

// Correction summarises the correction run for display.
type Correction struct {
	CorrectedText        string      `json:"corrected_text"`
	Reason               StopReason  `json:"stop_reason"`
	MaxIterationsReached bool        `json:"max_iterations_reached"`
	History              []Iteration `json:"iteration_history"`
}

// Iteration is the display form of one correction step.
type Iteration struct {
	Number          int    `json:"number"`
	ViolationsCount int    `json:"violations_count"`
	CorrectedText   string `json:"corrected_text,omitempty"`
}

// Meta records run metadata.
type Meta struct {
	RunID            string  `json:"run_id"`
	Model            string  `json:"model,omitempty"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}
