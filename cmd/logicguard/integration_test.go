//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/logicguard/internal/llm"
	"github.com/dshills/logicguard/internal/parser"
	"github.com/dshills/logicguard/internal/schema"
)

const (
	brokenText = "Hydraulic pump HP-7 has 95.000 operating hours with a maximum lifespan of 80.000 hours."
	fixedText  = "Hydraulic pump HP-7 has 15.000 operating hours with a maximum lifespan of 80.000 hours."
)

// brokenExtraction is the canned extraction for brokenText.
const brokenExtraction = "```json\n" + `{
  "component": {"name": "HP-7", "type": "Hydraulikpumpe", "operating_hours": "95.000", "max_lifespan": 80000},
  "measurements": [],
  "maintenance": null
}` + "\n```"

// fixedExtraction is the canned extraction for fixedText.
const fixedExtraction = `{
  "component": {"name": "HP-7", "type": "HydraulicPump", "operating_hours": 15000, "max_lifespan": 80000}
}`

// extraction is a canned extraction returned when the prompt contains key.
// An empty key matches every prompt.
type extraction struct {
	key, out string
}

// scriptedProvider answers extraction requests with the first matching
// entry and repair requests with a fixed text.
type scriptedProvider struct {
	mu          sync.Mutex
	extractions []extraction
	repair      string
	err         error
}

func (p *scriptedProvider) Complete(ctx context.Context, system, user string, maxTokens int, temp float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if system != parser.SystemPrompt {
		return p.repair, nil
	}
	for _, e := range p.extractions {
		if strings.Contains(user, e.key) {
			return e.out, nil
		}
	}
	return "", fmt.Errorf("mock: no extraction for prompt")
}

func injectProvider(t *testing.T, p llm.Provider) {
	t.Helper()
	orig := llm.NewProvider
	llm.NewProvider = func(llm.ProviderConfig) (llm.Provider, error) {
		return p, nil
	}
	t.Cleanup(func() { llm.NewProvider = orig })
}

func repairingProvider() *scriptedProvider {
	return &scriptedProvider{
		extractions: []extraction{{"95.000", brokenExtraction}, {"", fixedExtraction}},
		repair:      fixedText,
	}
}

// baseFlags returns validateFlags writing JSON to a temporary file.
func baseFlags(t *testing.T) validateFlags {
	t.Helper()
	dir := t.TempDir()
	return validateFlags{
		globalFlags: globalFlags{configPath: filepath.Join(dir, "logicguard.yaml")},
		text:        brokenText,
		format:      "json",
		out:         filepath.Join(dir, "report.json"),
	}
}

func readReport(t *testing.T, path string) schema.Report {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var rep schema.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("parse output JSON: %v", err)
	}
	return rep
}

func TestIntegration_Corrected(t *testing.T) {
	injectProvider(t, repairingProvider())
	f := baseFlags(t)

	if err := runValidate(context.Background(), f); err != nil {
		t.Fatalf("expected exit 0, got %d: %v", exitStatus(err), err)
	}
	rep := readReport(t, f.out)
	if rep.Summary.Verdict != schema.VerdictCorrected {
		t.Errorf("verdict: got %q, want CORRECTED", rep.Summary.Verdict)
	}
	if rep.Summary.Score != 100 {
		t.Errorf("score: got %d, want 100", rep.Summary.Score)
	}
	if rep.Correction == nil || rep.Correction.CorrectedText != fixedText {
		t.Errorf("correction: got %+v", rep.Correction)
	}
	if rep.Data == nil || rep.Data.Component == nil || rep.Data.Component.Kind != "HydraulicPump" {
		t.Errorf("data: got %+v", rep.Data)
	}
}

func TestIntegration_NoCorrect_FailOn(t *testing.T) {
	injectProvider(t, repairingProvider())
	f := baseFlags(t)
	f.noCorrect = true
	f.failOn = "invalid"

	err := runValidate(context.Background(), f)
	if code := exitStatus(err); code != exitCodeFailOn {
		t.Errorf("expected exit %d (failOn), got %d: %v", exitCodeFailOn, code, err)
	}
	rep := readReport(t, f.out)
	if rep.Summary.Verdict != schema.VerdictInvalid {
		t.Errorf("verdict: got %q, want INVALID", rep.Summary.Verdict)
	}
	if len(rep.Violations) != 1 || rep.Violations[0].Constraint != "C5" {
		t.Errorf("violations: got %+v", rep.Violations)
	}
}

func TestIntegration_MarkdownToStdout(t *testing.T) {
	injectProvider(t, repairingProvider())
	f := baseFlags(t)
	f.out = ""
	f.format = "markdown"
	var buf bytes.Buffer
	f.stdout = &buf

	if err := runValidate(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "## LogicGuard Report") {
		t.Errorf("markdown output missing heading:\n%s", buf.String())
	}
}

func TestIntegration_BadInput_ExitsThree(t *testing.T) {
	tests := map[string]func(*validateFlags){
		"no text":        func(f *validateFlags) { f.text = "" },
		"bad format":     func(f *validateFlags) { f.format = "xml" },
		"bad fail-on":    func(f *validateFlags) { f.failOn = "MAYBE" },
		"bad iterations": func(f *validateFlags) { f.maxIterations = 11 },
		"bad profile":    func(f *validateFlags) { f.profile = "nonexistent" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			injectProvider(t, repairingProvider())
			f := baseFlags(t)
			mutate(&f)
			err := runValidate(context.Background(), f)
			if code := exitStatus(err); code != exitCodeBadInput {
				t.Errorf("expected exit %d (bad input), got %d: %v", exitCodeBadInput, code, err)
			}
		})
	}
}

func TestIntegration_ProviderError_ExitsFour(t *testing.T) {
	injectProvider(t, &scriptedProvider{err: fmt.Errorf("simulated API error")})
	f := baseFlags(t)

	err := runValidate(context.Background(), f)
	if code := exitStatus(err); code != exitCodeAPIError {
		t.Errorf("expected exit %d (API error), got %d: %v", exitCodeAPIError, code, err)
	}
	if rep := readReport(t, f.out); rep.Summary.Verdict != schema.VerdictError {
		t.Errorf("verdict: got %q, want ERROR", rep.Summary.Verdict)
	}
}

func TestIntegration_InvalidOutput_ExitsFive(t *testing.T) {
	injectProvider(t, &scriptedProvider{extractions: []extraction{{"", "not json at all"}}})
	f := baseFlags(t)

	err := runValidate(context.Background(), f)
	if code := exitStatus(err); code != exitCodeBadOutput {
		t.Errorf("expected exit %d (bad output), got %d: %v", exitCodeBadOutput, code, err)
	}
}
