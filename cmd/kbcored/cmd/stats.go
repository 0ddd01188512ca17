package cmd

import (
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Dump every metric family's current values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, currentApp.registry.Snapshot())
		},
	}
}
