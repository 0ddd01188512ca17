package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var source string
	var lines int
	var level string
	var pattern string
	var follow bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail or follow kbcored's own log files",
		Long: `logs reads the structured JSON log files kbcored writes under
~/.kbcore/logs/ (core.log and, while "serve" is running, heartbeat.log),
merging multiple sources into one timestamp-ordered stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, source, lines, level, pattern, follow, noColor)
		},
	}

	cmd.Flags().StringVar(&source, "source", "all", "Log source: core, heartbeat, all")
	cmd.Flags().IntVar(&lines, "lines", 100, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep watching for new log lines")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI color codes")

	return cmd
}

func runLogs(cmd *cobra.Command, source string, lines int, level, pattern string, follow, noColor bool) error {
	paths, err := logging.FindLogFileBySource(logging.ParseLogSource(source), "")
	if err != nil {
		return err
	}

	viewerCfg := logging.ViewerConfig{Level: level, NoColor: noColor, ShowSource: len(paths) > 1}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile pattern: %w", err)
		}
		viewerCfg.Pattern = re
	}
	viewer := logging.NewViewer(viewerCfg, cmd.OutOrStdout())

	entries, err := viewer.TailMultiple(paths, lines)
	if err != nil {
		return fmt.Errorf("tail logs: %w", err)
	}
	viewer.Print(entries)

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := make(chan logging.LogEntry, 64)
	done := make(chan error, 1)
	go func() { done <- viewer.FollowMultiple(ctx, paths, stream) }()

	for {
		select {
		case entry := <-stream:
			viewer.Print([]logging.LogEntry{entry})
		case <-ctx.Done():
			return <-done
		}
	}
}
