// Package reporting generates human-readable job summary reports once a
// translation run reaches a terminal state.
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lfmt-dev/translate-pipeline/internal/config"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/sanitize"
)

// GenerateJobReport formats a job's terminal state as a markdown report:
// tokens, cost, chunk count, and duration.
func GenerateJobReport(j *job.Job) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Translation Report: %s\n\n", j.JobID))
	sb.WriteString(fmt.Sprintf("**Date:** %s  \n", time.Now().Format(time.RFC1123)))
	sb.WriteString(fmt.Sprintf("**User:** `%s`  \n", j.UserID))
	sb.WriteString(fmt.Sprintf("**Status:** `%s`  \n", j.Status))
	sb.WriteString(fmt.Sprintf("**Target Language:** %s (%s)  \n", j.TargetLanguage, job.SupportedTargetLanguages[j.TargetLanguage]))
	sb.WriteString(fmt.Sprintf("**Tone:** %s\n\n", j.Tone))

	sb.WriteString("## 📊 Progress\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Chunks Translated | %d / %d |\n", j.TranslatedChunks, j.TotalChunks))
	sb.WriteString(fmt.Sprintf("| Tokens Used | %d |\n", j.TokensUsed))
	sb.WriteString(fmt.Sprintf("| Estimated Cost | $%.4f |\n", j.EstimatedCost))
	sb.WriteString(fmt.Sprintf("| Original Token Count | %d |\n", j.OriginalTokenCount))
	sb.WriteString(fmt.Sprintf("| Average Chunk Size | %d |\n", j.AverageChunkSize))

	if duration, ok := translationDuration(j); ok {
		sb.WriteString(fmt.Sprintf("| Translation Duration | %s |\n", duration))
	}

	if j.Status == job.StatusTranslationFailed && j.ErrorMessage != "" {
		sb.WriteString("\n## ⚠️ Failure\n\n")
		sb.WriteString(j.ErrorMessage)
		sb.WriteString("\n")
	}

	return sb.String()
}

// translationDuration reports the elapsed time between translationStartedAt
// and whichever terminal timestamp is set, if both are present.
func translationDuration(j *job.Job) (string, bool) {
	if j.TranslationStartedAt == nil {
		return "", false
	}
	switch {
	case j.TranslationCompletedAt != nil:
		return j.TranslationCompletedAt.Sub(*j.TranslationStartedAt).Round(time.Second).String(), true
	case j.FailedAt != nil:
		return j.FailedAt.Sub(*j.TranslationStartedAt).Round(time.Second).String(), true
	default:
		return "", false
	}
}

// SaveReport writes a job report under the job's own subdirectory of
// cfg.Output.ReportsDir and returns the file path.
func SaveReport(j *job.Job, content string, cfg *config.Config) (string, error) {
	jobDir := filepath.Join(cfg.Output.ReportsDir, sanitize.Name(j.JobID))
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := time.Now().Format("2006-01-02_15-04-05") + ".md"
	filePath := filepath.Join(jobDir, filename)

	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return filePath, nil
}
