package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultInstructionsDir is the default directory for per-job additional
// instruction files.
const DefaultInstructionsDir = "./config/instructions"

// GetAdditionalInstructions reads the free-form translation instructions for
// a specific job from {instructionsDir}/{jobID}.md. The file is optional: a
// job with no matching file translates with no additional instructions.
func GetAdditionalInstructions(jobID, instructionsDir string) (string, error) {
	if instructionsDir == "" {
		instructionsDir = DefaultInstructionsDir
	}

	// Sanitize job id for file path
	safeID := strings.ReplaceAll(jobID, "/", "_")

	path := filepath.Join(instructionsDir, safeID+".md")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	content, err := os.ReadFile(path) // #nosec G304 -- path is constructed from sanitized job id and configured directory, not direct user input
	if err != nil {
		return "", fmt.Errorf("failed to read additional instructions from %s for job %q: %w", path, jobID, err)
	}

	return string(content), nil
}
