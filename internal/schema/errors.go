package schema

import "errors"

var (
	// ErrParse marks failures converting text into a Record. Fatal to the
	// current pass and never retried by the correction loop.
	ErrParse = errors.New("parse failed")

	// ErrGeneration marks failures of the repair generation call.
	ErrGeneration = errors.New("generation failed")

	// ErrCycleDetected marks a correction run stopped because the generator
	// repeated an earlier output. The run still carries a best-effort result.
	ErrCycleDetected = errors.New("correction cycle detected")

	// ErrMaxIterations marks a correction run stopped at its iteration cap.
	// The run still carries a best-effort result.
	ErrMaxIterations = errors.New("correction iteration limit reached")
)
