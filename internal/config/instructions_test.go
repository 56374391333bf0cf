package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAdditionalInstructions_FileExists(t *testing.T) {
	tmpDir := t.TempDir()
	instructionsDir := filepath.Join(tmpDir, "config", "instructions")
	require.NoError(t, os.MkdirAll(instructionsDir, 0750))

	content := "# Translation Notes\n\nKeep product names untranslated."
	require.NoError(t, os.WriteFile(filepath.Join(instructionsDir, "job-1.md"), []byte(content), 0600))

	instructions, err := GetAdditionalInstructions("job-1", instructionsDir)
	assert.NoError(t, err)
	assert.Equal(t, content, instructions)
}

func TestGetAdditionalInstructions_FileNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	instructionsDir := filepath.Join(tmpDir, "config", "instructions")

	instructions, err := GetAdditionalInstructions("nonexistent-job", instructionsDir)
	assert.NoError(t, err)
	assert.Empty(t, instructions)
}

func TestGetAdditionalInstructions_SanitizesJobID(t *testing.T) {
	tmpDir := t.TempDir()
	instructionsDir := filepath.Join(tmpDir, "config", "instructions")
	require.NoError(t, os.MkdirAll(instructionsDir, 0750))

	content := "Instructions for a job id containing slashes"
	require.NoError(t, os.WriteFile(filepath.Join(instructionsDir, "tenant_a_job_1.md"), []byte(content), 0600))

	instructions, err := GetAdditionalInstructions("tenant/a/job/1", instructionsDir)
	assert.NoError(t, err)
	assert.Equal(t, content, instructions)
}

func TestGetAdditionalInstructions_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	instructionsDir := filepath.Join(tmpDir, "config", "instructions")
	require.NoError(t, os.MkdirAll(instructionsDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(instructionsDir, "empty-job.md"), []byte(""), 0600))

	instructions, err := GetAdditionalInstructions("empty-job", instructionsDir)
	assert.NoError(t, err)
	assert.Empty(t, instructions)
}

func TestGetAdditionalInstructions_UnicodeContent(t *testing.T) {
	tmpDir := t.TempDir()
	instructionsDir := filepath.Join(tmpDir, "config", "instructions")
	require.NoError(t, os.MkdirAll(instructionsDir, 0750))

	content := "# Notas de traducción 📋\n\n- Conservar nombres propios\n- 保留专有名词"
	require.NoError(t, os.WriteFile(filepath.Join(instructionsDir, "unicode-job.md"), []byte(content), 0600))

	instructions, err := GetAdditionalInstructions("unicode-job", instructionsDir)
	assert.NoError(t, err)
	assert.Equal(t, content, instructions)
}

func TestGetAdditionalInstructions_EmptyDirUsesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	defaultDir := filepath.Join(tmpDir, "config", "instructions")
	require.NoError(t, os.MkdirAll(defaultDir, 0750))

	content := "Default location instructions"
	require.NoError(t, os.WriteFile(filepath.Join(defaultDir, "default-job.md"), []byte(content), 0600))

	originalWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() {
		_ = os.Chdir(originalWd)
	}()

	instructions, err := GetAdditionalInstructions("default-job", "")
	assert.NoError(t, err)
	assert.Equal(t, content, instructions)
}

func TestGetAdditionalInstructions_CustomDir(t *testing.T) {
	tmpDir := t.TempDir()
	customDir := filepath.Join(tmpDir, "custom", "instructions")
	require.NoError(t, os.MkdirAll(customDir, 0750))

	content := "Custom location instructions"
	require.NoError(t, os.WriteFile(filepath.Join(customDir, "custom-job.md"), []byte(content), 0600))

	instructions, err := GetAdditionalInstructions("custom-job", customDir)
	assert.NoError(t, err)
	assert.Equal(t, content, instructions)
}

func TestDefaultInstructionsDir(t *testing.T) {
	assert.Equal(t, "./config/instructions", DefaultInstructionsDir)
}
