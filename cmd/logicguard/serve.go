package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/orchestrator"
	"github.com/dshills/logicguard/internal/server"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := newLogger(cfg.Logging.Level, g.verbose)
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

			srv := server.New(orch, cfg.Server,
				server.WithLogger(logger),
				server.WithVersion(version),
				server.WithDefaults(cfg.Correction.AutoCorrect, cfg.Correction.Strict))
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
