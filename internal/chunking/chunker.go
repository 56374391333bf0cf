// Package chunking implements the sliding-window document chunker: it
// splits a long-form source document into translator-sized chunks that
// preserve sentence boundaries and carries bounded forward/backward
// context excerpts so each chunk can be translated independently.
package chunking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
)

// Chunk is one unit of the ordered sequence produced by ChunkDocument.
type Chunk struct {
	ChunkID         string `json:"chunkId"`
	ChunkIndex      int    `json:"chunkIndex"`
	TotalChunks     int    `json:"totalChunks"`
	PrimaryContent  string `json:"primaryContent"`
	PreviousSummary string `json:"previousSummary"`
	NextPreview     string `json:"nextPreview"`
	TokenCount      int    `json:"tokenCount"`
}

// Metadata describes the chunking run as a whole.
type Metadata struct {
	TotalChunks             int
	OriginalTokenCount      int
	AverageChunkSize        int
	ChunkingProcessingTimeMs int64
}

// Options configures chunk sizing. Zero values fall back to the package
// defaults (PRIMARY_MAX=3500, CONTEXT_MAX=250).
type Options struct {
	PrimaryMax          int
	ContextMax          int
	MinChunkSize        int
	SentenceTerminators []string
	Now                 func() time.Time
}

const (
	// DefaultPrimaryMax is the PRIMARY_MAX token ceiling for primary content.
	DefaultPrimaryMax = 3500
	// DefaultContextMax is the CONTEXT_MAX token ceiling for context excerpts.
	DefaultContextMax = 250
)

func (o Options) withDefaults() Options {
	if o.PrimaryMax <= 0 {
		o.PrimaryMax = DefaultPrimaryMax
	}
	if o.ContextMax <= 0 {
		o.ContextMax = DefaultContextMax
	}
	if o.MinChunkSize <= 0 {
		o.MinChunkSize = o.PrimaryMax / 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ChunkDocument partitions text into an ordered sequence of chunks
// satisfying the sizing and context invariants: every primary content is
// within PRIMARY_MAX tokens, context excerpts are within CONTEXT_MAX
// tokens, and adjacent chunks' context fields are textual affixes of
// their neighbors' primary content. Empty input fails fast rather than
// emitting a zero-chunk result.
func ChunkDocument(text string, tokenizer TokenizerInterface, opts Options) ([]Chunk, Metadata, error) {
	start := time.Now()
	opts = opts.withDefaults()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, Metadata{}, &apperrors.ValidationError{Field: "text", Reason: "document is empty"}
	}

	terminators := terminatorSet(opts.SentenceTerminators)
	sentences := splitSentences(trimmed, terminators)
	if len(sentences) == 0 {
		return nil, Metadata{}, &apperrors.ValidationError{Field: "text", Reason: "document contains no sentences"}
	}

	primaries, err := packSentences(sentences, tokenizer, opts.PrimaryMax)
	if err != nil {
		return nil, Metadata{}, err
	}

	originalTokens := tokenizer.CountTokens(strings.Join(sentences, " "))

	chunks := make([]Chunk, len(primaries))
	totalTokens := 0
	for i, primary := range primaries {
		tokenCount := tokenizer.CountTokens(primary)
		totalTokens += tokenCount
		chunks[i] = Chunk{
			ChunkIndex:     i,
			TotalChunks:    len(primaries),
			PrimaryContent: primary,
			TokenCount:     tokenCount,
		}
	}

	for i := range chunks {
		if i > 0 {
			chunks[i].PreviousSummary = trailingExcerpt(chunks[i-1].PrimaryContent, tokenizer, opts.ContextMax, terminators)
		}
		if i < len(chunks)-1 {
			chunks[i].NextPreview = leadingExcerpt(chunks[i+1].PrimaryContent, tokenizer, opts.ContextMax, terminators)
		}
		chunks[i].ChunkID = chunkID(i, len(chunks))
	}

	for i := range chunks {
		isEdge := i == 0 || i == len(chunks)-1 || len(chunks) == 1
		if err := validate(chunks[i], opts, isEdge); err != nil {
			return nil, Metadata{}, err
		}
	}

	avg := 0
	if len(chunks) > 0 {
		avg = totalTokens / len(chunks)
	}

	meta := Metadata{
		TotalChunks:              len(chunks),
		OriginalTokenCount:       originalTokens,
		AverageChunkSize:         avg,
		ChunkingProcessingTimeMs: opts.Now().Sub(start).Milliseconds(),
	}

	return chunks, meta, nil
}

// chunkID mints a globally-unique chunk identifier of the pattern
// chunk-<4-digit index>-of-<4-digit total>-<suffix>.
func chunkID(index, total int) string {
	return fmt.Sprintf("chunk-%04d-of-%04d-%s", index, total, uuid.NewString()[:8])
}

// packSentences greedily accumulates sentences into chunks no larger than
// primaryMax tokens, splitting any single oversized sentence on word
// boundaries into consecutive sub-chunks.
func packSentences(sentences []string, tokenizer TokenizerInterface, primaryMax int) ([]string, error) {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
	}

	for _, sentence := range sentences {
		sentenceTokens := tokenizer.CountTokens(sentence)

		if sentenceTokens > primaryMax {
			flush()
			parts, err := splitOnWordBoundaries(sentence, tokenizer, primaryMax)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, parts...)
			continue
		}

		joiner := ""
		if current.Len() > 0 {
			joiner = " "
		}
		candidateTokens := currentTokens + tokenizer.CountTokens(joiner) + sentenceTokens

		if candidateTokens > primaryMax && current.Len() > 0 {
			flush()
			current.WriteString(sentence)
			currentTokens = sentenceTokens
			continue
		}

		current.WriteString(joiner)
		current.WriteString(sentence)
		currentTokens = tokenizer.CountTokens(current.String())
	}
	flush()

	if len(chunks) == 0 {
		return nil, &apperrors.FatalInvariantError{Invariant: "chunk-count", Detail: "packing produced no chunks"}
	}

	return chunks, nil
}

// splitOnWordBoundaries splits a single oversized sentence into
// word-boundary sub-chunks each within primaryMax tokens.
func splitOnWordBoundaries(sentence string, tokenizer TokenizerInterface, primaryMax int) ([]string, error) {
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return nil, &apperrors.FatalInvariantError{Invariant: "oversized-sentence", Detail: "sentence has no words to split"}
	}

	var parts []string
	var current strings.Builder
	currentTokens := 0

	for _, word := range words {
		wordTokens := tokenizer.CountTokens(word)
		joiner := ""
		if current.Len() > 0 {
			joiner = " "
		}
		candidate := currentTokens + tokenizer.CountTokens(joiner) + wordTokens

		if candidate > primaryMax && current.Len() > 0 {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(word)
			currentTokens = wordTokens
			continue
		}

		current.WriteString(joiner)
		current.WriteString(word)
		currentTokens = tokenizer.CountTokens(current.String())
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}

	return parts, nil
}

// trailingExcerpt returns the trailing-token suffix of text, measured
// from the end until contextMax tokens are reached, preferring a
// sentence boundary and falling back to a word boundary.
func trailingExcerpt(text string, tokenizer TokenizerInterface, contextMax int, terminators map[rune]bool) string {
	if tokenizer.CountTokens(text) <= contextMax {
		return text
	}

	sentences := splitSentences(text, terminators)
	var acc []string
	accTokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		candidate := tokenizer.CountTokens(sentences[i])
		if accTokens+candidate > contextMax && len(acc) > 0 {
			break
		}
		acc = append([]string{sentences[i]}, acc...)
		accTokens += candidate
		if accTokens >= contextMax {
			break
		}
	}
	if len(acc) > 0 {
		joined := strings.Join(acc, " ")
		if tokenizer.CountTokens(joined) <= contextMax {
			return joined
		}
	}

	// Sentence-level excerpt still too large (e.g. one very long final
	// sentence): fall back to a word-boundary suffix.
	words := strings.Fields(text)
	var tail []string
	tailTokens := 0
	for i := len(words) - 1; i >= 0; i-- {
		candidate := tokenizer.CountTokens(words[i])
		if tailTokens+candidate > contextMax && len(tail) > 0 {
			break
		}
		tail = append([]string{words[i]}, tail...)
		tailTokens += candidate
	}
	return strings.Join(tail, " ")
}

// leadingExcerpt is the mirror-symmetric counterpart of trailingExcerpt:
// the leading-token prefix of text within contextMax tokens.
func leadingExcerpt(text string, tokenizer TokenizerInterface, contextMax int, terminators map[rune]bool) string {
	if tokenizer.CountTokens(text) <= contextMax {
		return text
	}

	sentences := splitSentences(text, terminators)
	var acc []string
	accTokens := 0
	for _, s := range sentences {
		candidate := tokenizer.CountTokens(s)
		if accTokens+candidate > contextMax && len(acc) > 0 {
			break
		}
		acc = append(acc, s)
		accTokens += candidate
		if accTokens >= contextMax {
			break
		}
	}
	if len(acc) > 0 {
		joined := strings.Join(acc, " ")
		if tokenizer.CountTokens(joined) <= contextMax {
			return joined
		}
	}

	words := strings.Fields(text)
	var head []string
	headTokens := 0
	for _, w := range words {
		candidate := tokenizer.CountTokens(w)
		if headTokens+candidate > contextMax && len(head) > 0 {
			break
		}
		head = append(head, w)
		headTokens += candidate
	}
	return strings.Join(head, " ")
}
