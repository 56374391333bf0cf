package templates

import (
	"strings"
	"testing"
)

func TestConfigYAML_NotEmpty(t *testing.T) {
	if len(ConfigYAML) == 0 {
		t.Error("Expected ConfigYAML to be non-empty")
	}
}

func TestConfigYAML_ContainsYAMLContent(t *testing.T) {
	content := string(ConfigYAML)

	expectedSections := []string{
		"chunking:",
		"rate_limit:",
		"translate:",
		"worker:",
		"storage:",
		"notification:",
		"output:",
	}

	for _, section := range expectedSections {
		if !strings.Contains(content, section) {
			t.Errorf("Expected ConfigYAML to contain section %q", section)
		}
	}
}

func TestConfigYAML_ContainsChunkingFields(t *testing.T) {
	content := string(ConfigYAML)

	expectedFields := []string{
		"primary_chunk_size:",
		"context_size:",
		"sentence_terminators:",
		"tokenizer_model:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Expected ConfigYAML to contain field %q", field)
		}
	}
}

func TestConfigYAML_ContainsTranslateFields(t *testing.T) {
	content := string(ConfigYAML)

	expectedFields := []string{
		"base_url:",
		"api_key:",
		"model:",
		"max_retries:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Expected ConfigYAML to contain field %q", field)
		}
	}
}

func TestConfigYAML_ContainsRateLimitFields(t *testing.T) {
	content := string(ConfigYAML)

	expectedFields := []string{
		"requests_per_minute:",
		"tokens_per_minute:",
		"requests_per_day:",
		"daily_reset_timezone:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Expected ConfigYAML to contain field %q", field)
		}
	}
}

func TestConfigYAML_ContainsStorageConfig(t *testing.T) {
	content := string(ConfigYAML)

	expectedFields := []string{
		"object_store:",
		"local_object_dir:",
		"local_kv_dir:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Expected ConfigYAML to contain field %q", field)
		}
	}
}

func TestConfigYAML_ContainsOutputConfig(t *testing.T) {
	content := string(ConfigYAML)

	expectedFields := []string{
		"reports_dir:",
		"llm_log_dir:",
		"report_retention_days:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(content, field) {
			t.Errorf("Expected ConfigYAML to contain field %q", field)
		}
	}
}

func TestConfigYAML_ContainsComments(t *testing.T) {
	content := string(ConfigYAML)

	if !strings.Contains(content, "#") {
		t.Error("Expected ConfigYAML to contain comments (lines starting with #)")
	}
}

func TestConfigYAML_ValidYAMLStructure(t *testing.T) {
	content := string(ConfigYAML)

	lines := strings.Split(content, "\n")
	hasIndentation := false

	for _, line := range lines {
		if strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   ") {
			hasIndentation = true
			break
		}
	}

	if !hasIndentation {
		t.Error("Expected ConfigYAML to have proper YAML indentation (2 spaces)")
	}
}

func TestConfigYAML_IsByteSlice(_ *testing.T) {
	_ = ConfigYAML[0]
}

func TestEnvFile_NotEmpty(t *testing.T) {
	if len(EnvFile) == 0 {
		t.Error("Expected EnvFile to be non-empty")
	}
}

func TestEnvFile_ContainsEnvVars(t *testing.T) {
	content := string(EnvFile)

	expectedVars := []string{
		"LFMT_TRANSLATE_API_KEY",
		"LFMT_TRANSLATE_BASE_URL",
		"LFMT_TRANSLATE_MODEL",
	}

	for _, envVar := range expectedVars {
		if !strings.Contains(content, envVar) {
			t.Errorf("Expected EnvFile to contain variable %q", envVar)
		}
	}
}

func TestEnvFile_HasProperFormat(t *testing.T) {
	content := string(EnvFile)

	if !strings.Contains(content, "=") {
		t.Error("Expected EnvFile to contain '=' for key=value format")
	}
}

func TestEnvFile_NoEmptyContent(t *testing.T) {
	content := string(EnvFile)

	if len(strings.TrimSpace(content)) == 0 {
		t.Error("Expected EnvFile to have non-whitespace content")
	}
}

func TestEnvFile_ContainsRequiredAPIKeyVar(t *testing.T) {
	content := string(EnvFile)

	if !strings.Contains(content, "LFMT_TRANSLATE_API_KEY=") {
		t.Error("Expected EnvFile to contain LFMT_TRANSLATE_API_KEY= as a required variable")
	}
}

func TestEnvFile_IsByteSlice(_ *testing.T) {
	_ = EnvFile[0]
}
