// Package cmd provides the CLI commands for kbcored.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/config"
	"github.com/aman-cerp/kbcore/internal/logging"
	"github.com/aman-cerp/kbcore/pkg/version"
)

// Debug logging flag and the shared state every subcommand reads through
// currentApp. Both are populated by PersistentPreRunE, mirroring the
// package-level wiring style used for profiling/logging cleanup.
var (
	dataDir        string
	debugMode      bool
	loggingCleanup func()

	currentApp *application
)

// NewRootCmd creates the root command for the kbcored CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbcored",
		Short: "Multi-tenant knowledge base core",
		Long: `kbcored manages isolated knowledge base projects: document
ingestion and chunking, hybrid vector/keyword retrieval, query expansion,
semantic result caching, and per-project API keys.

It has no HTTP surface of its own; it is the process a thin API handler
sits in front of.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("kbcored version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the configured storage data directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.kbcore/logs/")

	cmd.PersistentPreRunE = setupApplication
	cmd.PersistentPostRunE = teardownApplication

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupApplication loads configuration, wires logging, and builds the
// shared application state every subcommand operates on.
func setupApplication(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	probeDir := dataDir
	if probeDir == "" {
		probeDir = config.NewConfig().Storage.DataDir
	}
	cfg, err := config.Load(probeDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	app, err := newApplication(cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	currentApp = app

	slog.Info("kbcored ready",
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("backend", cfg.Storage.Backend))
	return nil
}

// teardownApplication persists project metadata and stops logging.
func teardownApplication(_ *cobra.Command, _ []string) error {
	var persistErr error
	if currentApp != nil {
		persistErr = currentApp.persist()
		currentApp = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	if persistErr != nil {
		return fmt.Errorf("persist project metadata: %w", persistErr)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
