package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/backup"
)

var (
	backupDir      string
	backupNoVerify bool
)

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "Backup directory (overrides config)")
	backupNowCmd.Flags().BoolVar(&backupNoVerify, "no-verify", false, "Skip the integrity check")
	backupCmd.AddCommand(backupNowCmd, backupListCmd, backupRestoreCmd, backupHealthCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot and restore the sqlite database",
	Long: `Snapshot and restore the sqlite database holding datasets, the entity
cache and settings. Snapshots use VACUUM INTO and are safe while serve runs.
Restore must run with serve stopped.

Examples:
  museus-scanner backup now
  museus-scanner backup list --human
  museus-scanner backup restore ./backups/scanner-20260101-000000.000000-1a2b3c4d.db`,
}

var backupNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Take a snapshot and apply retention",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBackupService()
		if err != nil {
			return err
		}
		result, err := svc.BackupNow(cmd.Context())
		if err != nil {
			return err
		}
		if humanOutput {
			outputHuman("Backup written to %s (%d bytes, verified=%v, pruned %d)\n",
				result.Path, result.Size, result.Verified, result.Pruned)
			return nil
		}
		return outputJSON(result)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBackupService()
		if err != nil {
			return err
		}
		backups, err := svc.ListBackups()
		if err != nil {
			return err
		}
		if humanOutput {
			if len(backups) == 0 {
				outputHuman("No backups\n")
			}
			for _, b := range backups {
				outputHuman("  %s  %10d  %s\n", b.Timestamp.Format("2006-01-02 15:04:05"), b.Size, b.Path)
			}
			return nil
		}
		if backups == nil {
			backups = []backup.Info{}
		}
		return outputJSON(backups)
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Replace the database with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBackupService()
		if err != nil {
			return err
		}
		if err := svc.RestoreBackup(cmd.Context(), args[0]); err != nil {
			return err
		}
		if humanOutput {
			outputHuman("Database restored from %s\n", args[0])
			return nil
		}
		return outputJSON(StatusResponse{Status: "restored", Path: args[0]})
	},
}

var backupHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report snapshot count, size and age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newBackupService()
		if err != nil {
			return err
		}
		status, err := svc.HealthCheck()
		if err != nil {
			return err
		}
		if humanOutput {
			outputHuman("%s: %s (%d backups, %d bytes in %s)\n", status.Status, status.Message,
				status.TotalBackups, status.DiskSpaceUsed, status.BackupDir)
			return nil
		}
		return outputJSON(status)
	},
}

func newBackupService() (*backup.Service, error) {
	if cfg.Storage.Engine == "postgres" {
		return nil, fmt.Errorf("backups cover sqlite storage only; use pg_dump for postgres")
	}
	dir := cfg.Backup.Path
	if backupDir != "" {
		dir = backupDir
	}
	return backup.NewService(backup.Config{
		DBPath:    cfg.Storage.SQLitePath(),
		BackupDir: dir,
		Interval:  cfg.Backup.Interval,
		Keep:      cfg.Backup.Keep,
		Verify:    cfg.Backup.Verify && !backupNoVerify,
	}, lg)
}
