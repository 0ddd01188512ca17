package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/heartbeat"
	"github.com/aman-cerp/kbcore/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the heartbeat worker until interrupted",
		Long: `serve starts the background heartbeat worker that periodically
checks every live project's backend health and runs its configured
warming queries. It blocks until SIGINT/SIGTERM, persisting project
metadata before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	app := currentApp
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hbLogCfg := logging.DefaultConfig()
	hbLogCfg.FilePath = logging.HeartbeatLogPath()
	hbLogCfg.WriteToStderr = false
	if debugMode {
		hbLogCfg.Level = "debug"
	}
	hbLogger, hbCleanup, err := logging.Setup(hbLogCfg)
	if err != nil {
		return fmt.Errorf("setup heartbeat logging: %w", err)
	}
	defer hbCleanup()

	interval := time.Duration(app.cfg.Heartbeat.IntervalSeconds) * time.Second
	worker := heartbeat.New(app.manager, app.registry, interval, hbLogger)

	worker.Start(ctx)
	slog.Info("heartbeat worker started", slog.Duration("interval", interval))

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "shutting down...")
	worker.Stop()
	return nil
}
