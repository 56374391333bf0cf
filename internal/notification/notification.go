// Package notification handles sending notifications to external services.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/lfmt-dev/translate-pipeline/internal/config"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

// Notifier handles sending notifications via Shoutrrr
type Notifier struct {
	enabled     bool
	shoutrrrURL string
}

// NewNotifier initializes a Shoutrrr-based notification client from config.
func NewNotifier(cfg *config.Config) (*Notifier, error) {
	if !cfg.Notification.Enabled {
		return &Notifier{enabled: false}, nil
	}

	url := strings.TrimSpace(cfg.Notification.ShoutrrURL)
	if url == "" {
		return &Notifier{enabled: false}, fmt.Errorf("notification enabled but shoutrrr_url not configured: provide URL in format 'service://credentials' (e.g., slack://token@channel, discord://token@webhookid)")
	}

	return &Notifier{
		enabled:     true,
		shoutrrrURL: cfg.Notification.ShoutrrURL,
	}, nil
}

// SendJobCompletion delivers a job's terminal status via the configured
// notification channel, once it reaches TRANSLATION_COMPLETED or
// TRANSLATION_FAILED.
func (n *Notifier) SendJobCompletion(j *job.Job) error {
	if !n.enabled {
		return nil // Notifications disabled
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var sb strings.Builder
	switch j.Status {
	case job.StatusTranslationCompleted:
		sb.WriteString("✅ Translation Complete\n")
	case job.StatusTranslationFailed:
		sb.WriteString("⚠️ Translation Failed\n")
	default:
		sb.WriteString("ℹ️ Translation Job Update\n")
	}
	sb.WriteString(fmt.Sprintf("📅 Time: %s\n", timestamp))
	sb.WriteString(fmt.Sprintf("🆔 Job: %s\n", j.JobID))
	sb.WriteString(fmt.Sprintf("🌐 Target Language: %s\n", j.TargetLanguage))
	sb.WriteString(fmt.Sprintf("📦 Chunks: %d / %d\n", j.TranslatedChunks, j.TotalChunks))
	sb.WriteString(fmt.Sprintf("💰 Estimated Cost: $%.4f\n", j.EstimatedCost))

	if j.Status == job.StatusTranslationFailed && j.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", j.ErrorMessage))
	}

	if err := shoutrrr.Send(n.shoutrrrURL, sb.String()); err != nil {
		serviceType := "unknown"
		if idx := strings.Index(n.shoutrrrURL, "://"); idx > 0 {
			serviceType = n.shoutrrrURL[:idx]
		}
		return fmt.Errorf("notification failed to send via %s for job %s: %w", serviceType, j.JobID, err)
	}

	return nil
}

// IsEnabled reports whether notifications are configured and active.
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}
