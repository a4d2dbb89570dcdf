package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/logicguard/internal/config"
	"github.com/dshills/logicguard/internal/llm"
	"github.com/dshills/logicguard/internal/profile"
	"github.com/dshills/logicguard/internal/schema"
)

var version = "dev"

const (
	exitCodeFailOn    = 2
	exitCodeBadInput  = 3
	exitCodeAPIError  = 4
	exitCodeBadOutput = 5
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	profile    string
	verbose    bool
}

func main() {
	var g globalFlags
	root := &cobra.Command{
		Use:           "logicguard",
		Short:         "Validate and repair language model output against domain constraints",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "logicguard.yaml", "configuration file")
	root.PersistentFlags().StringVar(&g.profile, "profile", "", "domain profile (overrides config)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newValidateCmd(&g), newConstraintsCmd(&g), newServeCmd(&g))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logicguard:", err)
		os.Exit(exitStatus(err))
	}
}

func exitStatus(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// loadConfig reads the configuration and applies the global flag overrides.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, withCode(exitCodeBadInput, err)
	}
	if g.profile != "" {
		cfg.Profile = g.profile
		if err := cfg.Validate(); err != nil {
			return nil, withCode(exitCodeBadInput, err)
		}
	}
	return cfg, nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// classify maps a pipeline or setup error to its exit code.
func classify(err error) error {
	var ve llm.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, profile.ErrUnknown):
		return withCode(exitCodeBadInput, err)
	case errors.Is(err, schema.ErrParse) && errors.As(err, &ve):
		return withCode(exitCodeBadOutput, err)
	case errors.Is(err, llm.ErrNoAPIKey),
		errors.Is(err, schema.ErrParse),
		errors.Is(err, schema.ErrGeneration):
		return withCode(exitCodeAPIError, err)
	}
	return err
}
