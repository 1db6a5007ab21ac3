// Package backup takes periodic verified snapshots of the scanner's sqlite
// database and prunes old ones.
package backup

import (
	"time"
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the path to the SQLite database file to backup
	DBPath string

	// BackupDir is the directory where backups will be stored
	BackupDir string

	// Interval is the duration between automated backups (default: 24 hours)
	Interval time.Duration

	// Keep is the number of newest backups retained (default: 7)
	Keep int

	// Verify enables integrity checking after each backup
	Verify bool
}

// Info contains metadata about a backup file.
type Info struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// Result contains the result of a backup operation.
type Result struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Size     int64         `json:"size"`
	Verified bool          `json:"verified"`
	Pruned   int           `json:"pruned"`
}

// HealthStatus represents the health of the backup service.
type HealthStatus struct {
	// Status is "healthy" or "warning"
	Status  string `json:"status"`
	Message string `json:"message"`

	LastBackup    time.Time `json:"last_backup"`
	NextBackup    time.Time `json:"next_backup"`
	TotalBackups  int       `json:"total_backups"`
	BackupDir     string    `json:"backup_dir"`
	DiskSpaceUsed int64     `json:"disk_space_used"`
}
