package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrRunning is returned by Run when the service is already running and
	// by RestoreBackup while it runs.
	ErrRunning = errors.New("backup service is running")

	// ErrNotRunning is returned by Stop before Run.
	ErrNotRunning = errors.New("backup service is not running")
)

// Service takes scheduled sqlite snapshots with verification and retention.
type Service struct {
	dbPath    string
	backupDir string
	interval  time.Duration
	keep      int
	verify    bool
	lg        zerolog.Logger

	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	lastBackupTime time.Time
	nextBackupTime time.Time
}

// NewService creates a backup service with the given configuration.
func NewService(cfg Config, lg zerolog.Logger) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}

	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Service{
		dbPath:    cfg.DBPath,
		backupDir: cfg.BackupDir,
		interval:  cfg.Interval,
		keep:      cfg.Keep,
		verify:    cfg.Verify,
		lg:        lg.With().Str("component", "backup").Logger(),
	}, nil
}

// Run performs backups at the configured interval until ctx is cancelled or
// Stop is called.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.nextBackupTime = time.Now().Add(s.interval)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.lg.Info().Dur("interval", s.interval).Str("dir", s.backupDir).Msg("backup service started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stopCh:
			return nil

		case <-ticker.C:
			result, err := s.BackupNow(ctx)
			if err != nil {
				s.lg.Error().Err(err).Msg("scheduled backup failed")
			} else {
				s.lg.Info().
					Str("path", result.Path).
					Int64("size", result.Size).
					Dur("duration", result.Duration).
					Bool("verified", result.Verified).
					Int("pruned", result.Pruned).
					Msg("scheduled backup completed")
			}

			s.mu.Lock()
			s.nextBackupTime = time.Now().Add(s.interval)
			s.mu.Unlock()
		}
	}
}

// Stop ends Run.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}
	close(s.stopCh)
	s.running = false
	return nil
}

// BackupNow takes a snapshot, verifies it when configured and prunes old
// snapshots beyond the retention count.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	start := time.Now()

	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	name := fmt.Sprintf("%s%s-%s%s", backupPrefix,
		start.UTC().Format("20060102-150405.000000"), uuid.NewString()[:8], backupSuffix)
	path := filepath.Join(s.backupDir, name)

	if err := backupSQLite(ctx, s.dbPath, path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	result := &Result{Path: path, Size: info.Size()}

	if s.verify {
		if err := verifyBackup(ctx, path); err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("backup verification failed: %w", err)
		}
		result.Verified = true
	}

	s.mu.Lock()
	s.lastBackupTime = time.Now()
	s.mu.Unlock()

	// Retention errors do not fail the backup.
	pruned, err := applyRetention(s.backupDir, s.keep)
	if err != nil {
		s.lg.Warn().Err(err).Msg("failed to apply retention")
	}
	result.Pruned = pruned
	result.Duration = time.Since(start)

	return result, nil
}

// ListBackups lists available backups, newest first.
func (s *Service) ListBackups() ([]Info, error) {
	return listBackups(s.backupDir)
}

// RestoreBackup replaces the database with a backup. The database must be
// closed and the scheduler stopped.
func (s *Service) RestoreBackup(ctx context.Context, backupPath string) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return ErrRunning
	}

	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup not found: %w", err)
	}

	tempBackup := s.dbPath + ".pre-restore"
	if _, err := os.Stat(s.dbPath); err == nil {
		if err := backupSQLite(ctx, s.dbPath, tempBackup); err != nil {
			return fmt.Errorf("failed to create pre-restore backup: %w", err)
		}
		defer func() { _ = os.Remove(tempBackup) }()
	}

	if err := restoreSQLite(ctx, backupPath, s.dbPath); err != nil {
		if _, statErr := os.Stat(tempBackup); statErr == nil {
			if rbErr := restoreSQLite(ctx, tempBackup, s.dbPath); rbErr != nil {
				return fmt.Errorf("restore failed and rollback failed: %v (restore error: %w)", rbErr, err)
			}
			return fmt.Errorf("restore failed, rolled back to previous state: %w", err)
		}
		return err
	}

	s.lg.Info().Str("path", backupPath).Msg("database restored")
	return nil
}

// HealthCheck returns the current health status of the backup service.
func (s *Service) HealthCheck() (*HealthStatus, error) {
	s.mu.Lock()
	lastBackup := s.lastBackupTime
	nextBackup := s.nextBackupTime
	s.mu.Unlock()

	backups, err := s.ListBackups()
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	diskUsage, err := calculateDiskUsage(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate disk usage: %w", err)
	}

	status := &HealthStatus{
		Status:        "healthy",
		LastBackup:    lastBackup,
		NextBackup:    nextBackup,
		TotalBackups:  len(backups),
		BackupDir:     s.backupDir,
		DiskSpaceUsed: diskUsage,
	}

	switch {
	case lastBackup.IsZero():
		status.Message = "No backups yet"
	case time.Since(lastBackup) > s.interval*2:
		status.Status = "warning"
		status.Message = fmt.Sprintf("Backup overdue by %v", time.Since(lastBackup)-s.interval)
	default:
		status.Message = fmt.Sprintf("Last backup: %v ago", time.Since(lastBackup).Round(time.Minute))
	}
	return status, nil
}
