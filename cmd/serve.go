package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/monitoring"
	"github.com/veilletech/triage-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API over the run store and the pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		env, err := initPipeline("")
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := resolvePort(servePort, cfg.Server.Port)
		srv := server.New(server.Options{
			Store:  st,
			Runner: env.classifyDataset,
			LLM:    env.Claude,
			Port:   port,
		})

		zap.L().Info("serving", zap.Int("port", port))
		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers an explicit flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	return configured
}
