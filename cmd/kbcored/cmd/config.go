package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and back up the user configuration file",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigListBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, currentApp.cfg)
		},
	}
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the user config file at " + "~/.config/kbcore/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.BackupUserConfig()
			if err != nil {
				return fmt.Errorf("backup user config: %w", err)
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no user config file to back up")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up user config to %s\n", path)
			return nil
		},
	}
}

func newConfigListBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List user config backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return fmt.Errorf("list config backups: %w", err)
			}
			return printJSON(cmd, backups)
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup file, backing up the current one first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("restore user config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored user config from %s\n", args[0])
			return nil
		},
	}
}
