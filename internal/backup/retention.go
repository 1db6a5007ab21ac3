package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	backupPrefix = "scanner-"
	backupSuffix = ".db"
)

// listBackups lists backup files in backupDir, newest first.
func listBackups(backupDir string) ([]Info, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // vanished between ReadDir and Info
		}
		backups = append(backups, Info{
			Path:      filepath.Join(backupDir, name),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	// Names start with a sortable timestamp; it breaks mtime ties.
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Path > backups[j].Path
	})

	return backups, nil
}

// applyRetention removes all but the keep newest backups and returns how
// many were removed. keep < 1 keeps everything.
func applyRetention(backupDir string, keep int) (int, error) {
	if keep < 1 {
		return 0, nil
	}
	backups, err := listBackups(backupDir)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	var lastErr error
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			lastErr = err
			continue
		}
		removed++
	}
	if lastErr != nil {
		return removed, fmt.Errorf("failed to delete some backups: %w", lastErr)
	}
	return removed, nil
}

// calculateDiskUsage calculates total bytes used by all backups.
func calculateDiskUsage(backupDir string) (int64, error) {
	backups, err := listBackups(backupDir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, b := range backups {
		total += b.Size
	}
	return total, nil
}
