package chunking

import (
	"strings"
	"unicode"
)

// defaultTerminators are the sentence-ending punctuation marks recognized
// when no caller-supplied set is configured.
var defaultTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, // ideographic full stop
}

// terminatorSet converts the configured terminator strings into a rune
// set usable by splitSentences, falling back to defaultTerminators when
// the caller supplied none.
func terminatorSet(configured []string) map[rune]bool {
	if len(configured) == 0 {
		return defaultTerminators
	}
	set := make(map[rune]bool, len(configured))
	for _, s := range configured {
		for _, r := range s {
			set[r] = true
		}
	}
	return set
}

// splitSentences segments text into an ordered list of sentences,
// tolerant of multi-paragraph input, runs of whitespace, and common
// Unicode terminal punctuation. Whitespace between sentences is
// normalized away; callers reconstruct spacing by joining with a single
// space.
func splitSentences(text string, terminators map[rune]bool) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !terminators[r] {
			continue
		}

		// Absorb a run of trailing terminators/quotes, e.g. `?!` or `."`.
		j := i + 1
		for j < len(runes) && (terminators[runes[j]] || isClosingQuote(runes[j])) {
			current.WriteRune(runes[j])
			j++
		}
		i = j - 1

		// A terminator followed immediately by a lowercase letter or digit
		// is more likely an abbreviation/decimal than a sentence boundary
		// (e.g. "e.g." or "3.14"); a short all-caps token just before the
		// terminator is likely an abbreviation too (e.g. "U.S.", "Mr.").
		// Keep accumulating in either case.
		if j < len(runes) && isMidWordContinuation(runes[j]) {
			continue
		}
		if j < len(runes) && looksLikeAbbreviation(current.String()) {
			continue
		}

		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')':
		return true
	default:
		return false
	}
}

func isMidWordContinuation(r rune) bool {
	return unicode.IsDigit(r) || (unicode.IsLower(r) && unicode.IsLetter(r))
}

// looksLikeAbbreviation reports whether the last word of s, ignoring dots
// and surrounding punctuation, is an all-caps token of at most three
// letters (e.g. "U.S.") or one of the titles Mr, Mrs, Ms, Dr.
func looksLikeAbbreviation(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	word := strings.TrimFunc(fields[len(fields)-1], func(r rune) bool { return !unicode.IsLetter(r) })
	word = strings.ReplaceAll(word, ".", "")
	switch word {
	case "Mr", "Mrs", "Ms", "Dr":
		return true
	}
	return word != "" && len(word) <= 3 && strings.IndexFunc(word, func(r rune) bool { return !unicode.IsUpper(r) }) < 0
}
