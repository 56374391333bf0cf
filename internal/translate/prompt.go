package translate

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

//go:embed defaults/translate_prompt.md
var embeddedPrompts embed.FS

// PromptBuilder composes the deterministic translation prompt: role
// preamble, target-language name, tone directive, formatting directive,
// optional additional instructions, optional context block, the text to
// translate, and a closing instruction to return translated text only.
// Supports an external template override alongside the embedded default.
type PromptBuilder struct {
	externalPath string

	mu     sync.RWMutex
	source string
}

// NewPromptBuilder constructs a builder. externalPath, if non-empty and
// readable, overrides the embedded default template on every Build call.
func NewPromptBuilder(externalPath string) *PromptBuilder {
	return &PromptBuilder{externalPath: externalPath}
}

// Source reports whether the last Build used the external override or the
// embedded default, for introspection/debugging.
func (pb *PromptBuilder) Source() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.source
}

// Options carries the per-call inputs to prompt construction.
type Options struct {
	TargetLanguage         string // closed enumeration code, e.g. "es"
	Tone                   job.Tone
	PreserveFormatting     bool
	AdditionalInstructions string
	ContextBlock           string // previousSummary of the preceding chunk
	Text                   string // primaryContent
}

type templateData struct {
	TargetLanguageName     string
	Tone                   job.Tone
	FormattingDirective    string
	AdditionalInstructions string
	ContextBlock           string
	Text                   string
}

// Build renders the translation prompt. Returns a *apperrors.ValidationError
// if TargetLanguage is outside the closed enumeration of supported
// languages, or if Tone is not one of the supported tones.
func (pb *PromptBuilder) Build(opts Options) (string, error) {
	languageName, ok := job.SupportedTargetLanguages[opts.TargetLanguage]
	if !ok {
		return "", &apperrors.ValidationError{Field: "targetLanguage", Reason: fmt.Sprintf("unsupported language code %q", opts.TargetLanguage)}
	}
	if !job.ValidTone(opts.Tone) {
		return "", &apperrors.ValidationError{Field: "tone", Reason: fmt.Sprintf("unsupported tone %q", opts.Tone)}
	}

	content, err := pb.loadTemplate()
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("translate_prompt").Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse translation prompt template: %w", err)
	}

	formatting := "Preserve the original text's structure but do not preserve literal line breaks inside a sentence."
	if opts.PreserveFormatting {
		formatting = "Preserve the original text's paragraph breaks, line breaks, and any markup exactly."
	}

	data := templateData{
		TargetLanguageName:     languageName,
		Tone:                   opts.Tone,
		FormattingDirective:    formatting,
		AdditionalInstructions: opts.AdditionalInstructions,
		ContextBlock:           opts.ContextBlock,
		Text:                   opts.Text,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute translation prompt template: %w", err)
	}
	return buf.String(), nil
}

func (pb *PromptBuilder) loadTemplate() (string, error) {
	if pb.externalPath != "" {
		cleanPath := filepath.Clean(pb.externalPath)
		content, err := os.ReadFile(cleanPath) // #nosec G304 -- operator-supplied config path, not user input
		if err == nil {
			pb.mu.Lock()
			pb.source = fmt.Sprintf("external:%s", cleanPath)
			pb.mu.Unlock()
			return string(content), nil
		}
	}

	content, err := embeddedPrompts.ReadFile("defaults/translate_prompt.md")
	if err != nil {
		return "", fmt.Errorf("failed to load embedded translation prompt: %w", err)
	}
	pb.mu.Lock()
	pb.source = "embedded"
	pb.mu.Unlock()
	return string(content), nil
}
