package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/observability"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine until interrupted",
	Long: `Start the engine and keep it running in the foreground. Health
monitoring runs on its interval and the process shuts down cleanly on
SIGINT or SIGTERM, cancelling any jobs still in flight.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			return internal.WrapError(internal.ExitConfigError, "failed to initialize tracing", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = observability.ShutdownTracing(shutdownCtx, tp)
		}()
	}

	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}

	if err := eng.Start(ctx); err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to start engine", err)
	}

	rootLogger.Info("engine serving",
		"config", cfgPath,
		"tools", len(eng.Registry().ListAll()))

	<-ctx.Done()

	rootLogger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		return internal.WrapError(internal.ExitError, "shutdown failed", err)
	}

	return nil
}
