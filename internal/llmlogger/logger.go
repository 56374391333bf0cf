// Package llmlogger provides logging functionality for LLM requests and
// responses. It creates Markdown files containing the full interaction
// details for debugging, cost auditing, and prompt engineering purposes.
package llmlogger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Logger handles logging of LLM interactions to Markdown files.
type Logger struct {
	baseDir string
	enabled bool
}

// NewLogger creates a new Logger instance.
// If enabled is false, all logging operations become no-ops.
func NewLogger(baseDir string, enabled bool) *Logger {
	return &Logger{
		baseDir: baseDir,
		enabled: enabled,
	}
}

// IsEnabled returns whether logging is enabled.
func (l *Logger) IsEnabled() bool {
	return l != nil && l.enabled
}

// LogInteraction logs an LLM interaction to a Markdown file at
// {baseDir}/{label}/{timestamp}.md. label identifies the call site — the
// translation client uses "job-<jobId>-chunk-<index>-<uuid>". Returns nil if
// logging is disabled or the logger is nil.
func (l *Logger) LogInteraction(label string, request, response interface{}) error {
	if !l.IsEnabled() {
		return nil
	}

	dir := filepath.Join(l.baseDir, sanitizeFilename(label))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	timestamp := time.Now().UTC()
	filename := fmt.Sprintf("%s.md", timestamp.Format("2006-01-02T15-04-05Z"))
	filePath := filepath.Join(dir, filename)

	requestJSON, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		requestJSON = []byte(fmt.Sprintf("Error marshaling request: %v", err))
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		responseJSON = []byte(fmt.Sprintf("Error marshaling response: %v", err))
	}

	content := formatMarkdown(label, timestamp, requestJSON, responseJSON)

	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", filePath, err)
	}

	return nil
}

// formatMarkdown generates the Markdown content for an LLM interaction log.
func formatMarkdown(label string, timestamp time.Time, requestJSON, responseJSON []byte) string {
	return fmt.Sprintf(`# LLM Interaction Log

**Call**: %s
**Timestamp**: %s

## Request Sent to LLM

`+"```json"+`
%s
`+"```"+`

## LLM Response

`+"```json"+`
%s
`+"```"+`
`, label, timestamp.Format(time.RFC3339), string(requestJSON), string(responseJSON))
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(name string) string {
	invalid := []rune{'/', '\\', ':', '*', '?', '"', '<', '>', '|'}
	result := []rune(name)
	for i, r := range result {
		for _, inv := range invalid {
			if r == inv {
				result[i] = '_'
				break
			}
		}
	}
	return string(result)
}
