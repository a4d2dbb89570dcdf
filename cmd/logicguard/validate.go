package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/orchestrator"
	"github.com/dshills/logicguard/internal/render"
	"github.com/dshills/logicguard/internal/schema"
	"github.com/dshills/logicguard/internal/verdict"
)

type validateFlags struct {
	globalFlags
	text          string
	file          string
	stdin         io.Reader
	stdout        io.Writer
	out           string
	format        string
	failOn        string
	maxIterations int
	noCorrect     bool
	strict        bool
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate [text]",
		Short: "Check text against the constraint catalog and repair violations",
		Long: `Extracts structured facts from the text, evaluates them against the
active profile's constraints and, unless --no-correct is given, asks the
model to repair violations until the text is consistent, a correction
repeats, or the iteration limit is reached.

The text is taken from the argument, from --file, or from stdin.

Exit codes:
  0  success
  2  verdict at or beyond --fail-on
  3  bad input or configuration
  4  model API error
  5  model output could not be read`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.globalFlags = *g
			if len(args) == 1 {
				f.text = args[0]
			}
			f.stdin = cmd.InOrStdin()
			f.stdout = cmd.OutOrStdout()
			return runValidate(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "read the text from a file")
	fl.StringVarP(&f.out, "output", "o", "", "write the report to a file instead of stdout")
	fl.StringVar(&f.format, "format", "text", "report format: text, json, markdown")
	fl.StringVar(&f.failOn, "fail-on", "", "exit 2 when the verdict is at or beyond this (CORRECTED, PARTIALLY_CORRECTED, INVALID, ERROR)")
	fl.IntVar(&f.maxIterations, "max-iterations", 0, "override the correction iteration limit (1-10)")
	fl.BoolVar(&f.noCorrect, "no-correct", false, "validate only")
	fl.BoolVar(&f.strict, "strict", false, "treat warnings as errors")
	return cmd
}

func runValidate(ctx context.Context, f validateFlags) error {
	switch f.format {
	case "text", "json", "markdown":
	default:
		return withCode(exitCodeBadInput, fmt.Errorf("unknown format %q", f.format))
	}
	var failOn schema.Verdict
	if f.failOn != "" {
		v, err := verdict.ParseVerdict(f.failOn)
		if err != nil {
			return withCode(exitCodeBadInput, err)
		}
		failOn = v
	}
	if f.maxIterations < 0 || f.maxIterations > 10 {
		return withCode(exitCodeBadInput, fmt.Errorf("--max-iterations must be between 1 and 10"))
	}

	text, err := readInput(f)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}

	cfg, err := loadConfig(&f.globalFlags)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging.Level, f.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	orch, err := orchestrator.New(cfg, orchestrator.WithLogger(logger))
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err := orch.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	autoCorrect := cfg.Correction.AutoCorrect && !f.noCorrect
	opts := []orchestrator.RunOption{orchestrator.WithoutCorrection()}
	if autoCorrect {
		opts = []orchestrator.RunOption{orchestrator.WithCorrection()}
	}
	if f.maxIterations > 0 {
		opts = append(opts, orchestrator.WithMaxIterations(f.maxIterations))
	}

	res, runErr := orch.Process(ctx, text, opts...)
	rep := render.BuildReport(res, runErr, render.ReportOptions{
		Version:     version,
		Profile:     orch.Profile().Name,
		Model:       orch.Model(),
		AutoCorrect: autoCorrect,
		Strict:      f.strict || cfg.Correction.Strict || orch.Profile().StrictSeverity,
		Checked:     len(orch.ConstraintsInfo()),
	})

	if err := writeReport(f, rep); err != nil {
		return err
	}

	if runErr != nil {
		return classify(runErr)
	}
	if failOn != "" && verdict.VerdictOrdinal(rep.Summary.Verdict) >= verdict.VerdictOrdinal(failOn) {
		return withCode(exitCodeFailOn, fmt.Errorf("verdict %s meets --fail-on %s", rep.Summary.Verdict, failOn))
	}
	return nil
}

func readInput(f validateFlags) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case f.text != "" && f.file != "":
		return "", errors.New("give the text as an argument or with --file, not both")
	case f.text != "":
		data = []byte(f.text)
	case f.file != "":
		data, err = os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.file, err)
		}
	case f.stdin != nil:
		data, err = io.ReadAll(f.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no text to validate")
	}
	return text, nil
}

func writeReport(f validateFlags, rep *schema.Report) error {
	var (
		b   []byte
		err error
	)
	switch f.format {
	case "json":
		b, err = render.RenderJSON(rep)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	case "markdown":
		b = []byte(render.RenderMarkdown(rep))
	default:
		b = []byte(render.RenderText(rep))
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	if f.out != "" {
		if err := os.WriteFile(f.out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.out, err)
		}
		return nil
	}
	w := f.stdout
	if w == nil {
		w = os.Stdout
	}
	_, err = w.Write(b)
	return err
}
