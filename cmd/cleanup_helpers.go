package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lfmt-dev/translate-pipeline/internal/config"
)

// ExpiredDir is one job's report or LLM-log directory whose newest file
// predates the retention cutoff (config's report_retention_days).
type ExpiredDir struct {
	JobID      string // directory name, the sanitized job id
	Path       string
	Kind       string // "report" | "llm_log"
	NewestFile time.Time
}

// findExpiredDirs scans cfg.Output.ReportsDir and, if LLM logging is
// enabled, cfg.Output.LLMLogDir for per-job subdirectories whose newest
// file predates cfg.Output.ReportRetentionDays. A missing base directory
// is not an error — nothing has been written there yet.
func findExpiredDirs(cfg *config.Config, now time.Time) ([]ExpiredDir, error) {
	cutoff := now.Add(-time.Duration(cfg.Output.ReportRetentionDays) * 24 * time.Hour)

	var expired []ExpiredDir

	reportDirs, err := scanExpiredSubdirs(cfg.Output.ReportsDir, "report", cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reports directory: %w", err)
	}
	expired = append(expired, reportDirs...)

	if cfg.Output.LLMLogEnabled {
		logDirs, err := scanExpiredSubdirs(cfg.Output.LLMLogDir, "llm_log", cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to scan LLM log directory: %w", err)
		}
		expired = append(expired, logDirs...)
	}

	sort.Slice(expired, func(i, j int) bool {
		if expired[i].Kind != expired[j].Kind {
			return expired[i].Kind < expired[j].Kind
		}
		return expired[i].JobID < expired[j].JobID
	})

	return expired, nil
}

// scanExpiredSubdirs lists baseDir's immediate subdirectories and reports
// those whose newest file modification time is at or before cutoff. An
// empty subdirectory (no files ever written) is treated as expired too,
// since it carries nothing worth retaining.
func scanExpiredSubdirs(baseDir, kind string, cutoff time.Time) ([]ExpiredDir, error) {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", baseDir, err)
	}

	var expired []ExpiredDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(baseDir, entry.Name())
		newest, err := newestFileModTime(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect directory %s: %w", dir, err)
		}
		if newest.IsZero() || !newest.After(cutoff) {
			expired = append(expired, ExpiredDir{JobID: entry.Name(), Path: dir, Kind: kind, NewestFile: newest})
		}
	}
	return expired, nil
}

// newestFileModTime returns the most recent modification time among dir's
// files, or the zero time if dir contains none.
func newestFileModTime(dir string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, err
	}

	var newest time.Time
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to stat %s: %w", filepath.Join(dir, entry.Name()), err)
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, nil
}

// deleteExpiredDir recursively removes an expired job directory.
func deleteExpiredDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied deleting %s; check file permissions", dir)
		}
		return fmt.Errorf("failed to delete directory %s: %w", dir, err)
	}
	return nil
}
