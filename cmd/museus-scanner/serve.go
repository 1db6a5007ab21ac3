package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luizprojeto1143/museus-frontend-sub000/internal/backup"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/camera"
	"github.com/luizprojeto1143/museus-frontend-sub000/internal/server"
	"github.com/luizprojeto1143/museus-frontend-sub000/pkg/types"
)

var serveAutoBegin bool

func init() {
	serveCmd.Flags().BoolVar(&serveAutoBegin, "begin", false, "Begin scanning as soon as the model is ready")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recognition engine and the kiosk API",
	Long: `Run the recognition engine behind the local HTTP and websocket API.

Frames are read from the camera spool directory. The dataset is saved on
shutdown. When backups are enabled and storage is sqlite, the database is
snapshotted on the configured interval.

Examples:
  museus-scanner serve
  museus-scanner serve --begin --config kiosk.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if err := os.MkdirAll(cfg.Camera.SpoolDir, 0o755); err != nil {
		return err
	}

	preview := camera.NewPreviewSink()
	eng, err := buildEngine(cfg, repo, preview)
	if err != nil {
		return err
	}

	eng.OnStateChange(func(from, to types.ScanState) {
		lg.Info().Str("from", string(from)).Str("to", string(to)).Msg("state changed")
	})
	eng.OnMatch(func(m types.StableMatch) {
		lg.Info().Str("label", m.Label).Float64("confidence", m.Confidence).Str("entity", m.Entity.DisplayName).Msg("match")
	})

	addr, _, err := server.Start(ctx, cfg, eng, preview, lg)
	if err != nil {
		return err
	}
	lg.Info().Str("url", "http://"+addr).Msg("kiosk API running")

	if err := eng.Start(ctx); err != nil {
		return err
	}

	if serveAutoBegin {
		go func() {
			if err := eng.WaitReady(ctx); err != nil {
				lg.Error().Err(err).Msg("engine not ready, scanning not started")
				return
			}
			if err := eng.Begin(ctx); err != nil {
				lg.Error().Err(err).Msg("failed to begin scanning")
			}
		}()
	}

	if cfg.Backup.Enabled && cfg.Storage.Engine != "postgres" {
		svc, err := backup.NewService(backup.Config{
			DBPath:    cfg.Storage.SQLitePath(),
			BackupDir: cfg.Backup.Path,
			Interval:  cfg.Backup.Interval,
			Keep:      cfg.Backup.Keep,
			Verify:    cfg.Backup.Verify,
		}, lg)
		if err != nil {
			return err
		}
		go func() {
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error().Err(err).Msg("backup service stopped")
			}
		}()
	}

	<-ctx.Done()
	lg.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := eng.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("engine shutdown")
	}
	if eng.Err() == nil && eng.Dirty() {
		if err := eng.Save(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("failed to save dataset")
		}
	}

	// Let the server drain before the repository closes.
	time.Sleep(500 * time.Millisecond)
	lg.Info().Msg("stopped")
	return nil
}
