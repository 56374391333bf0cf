package chunking

import (
	"fmt"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
)

// Validate reports whether a chunk satisfies the sizing invariants from
// the chunking contract: primary content within PRIMARY_MAX (and, for
// every chunk but the first/last/sole chunk, at least MIN_SIZE), and
// the edge chunks' absent context excerpts being empty.
func Validate(chunk Chunk, opts Options) bool {
	opts = opts.withDefaults()
	isEdge := chunk.ChunkIndex == 0 || chunk.ChunkIndex == chunk.TotalChunks-1 || chunk.TotalChunks == 1
	return validate(chunk, opts, isEdge) == nil
}

// validate self-checks a single emitted chunk, returning a fatal
// invariant error describing the first violation found. isEdge marks
// chunks exempt from the MIN_SIZE floor (first, last, or sole chunk).
func validate(chunk Chunk, opts Options, isEdge bool) error {
	if chunk.TokenCount > opts.PrimaryMax {
		return &apperrors.FatalInvariantError{
			Invariant: "primary-max",
			Detail:    fmt.Sprintf("chunk %d has %d tokens, exceeds PRIMARY_MAX=%d", chunk.ChunkIndex, chunk.TokenCount, opts.PrimaryMax),
		}
	}
	if !isEdge && chunk.TokenCount < opts.MinChunkSize {
		return &apperrors.FatalInvariantError{
			Invariant: "min-size",
			Detail:    fmt.Sprintf("chunk %d has %d tokens, below MIN_SIZE=%d", chunk.ChunkIndex, chunk.TokenCount, opts.MinChunkSize),
		}
	}
	if chunk.ChunkIndex == 0 && chunk.PreviousSummary != "" {
		return &apperrors.FatalInvariantError{
			Invariant: "previous-summary-empty",
			Detail:    "chunk 0 must have an empty previousSummary",
		}
	}
	if chunk.ChunkIndex == chunk.TotalChunks-1 && chunk.NextPreview != "" {
		return &apperrors.FatalInvariantError{
			Invariant: "next-preview-empty",
			Detail:    fmt.Sprintf("last chunk %d must have an empty nextPreview", chunk.ChunkIndex),
		}
	}
	return nil
}
