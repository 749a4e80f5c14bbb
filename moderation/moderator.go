// Package moderation censors user-authored message content before it is
// persisted and broadcast. Generated character replies are not moderated.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches forbidden words with an Aho-Corasick automaton built
// once at startup. Matching runs on a normalized view of the text
// (lowercased, leet-speak folded, punctuation stripped) while replacement
// happens on the original runes, so spacing and case are preserved.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// leetFold maps common character substitutions back to their letter.
var leetFold = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		normalized, _ := normalize([]rune(word))
		// Pure noise entries normalize to nothing and cannot be matched
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor replaces every character of each matched span with the
// replacement rune. Input without matches is returned unchanged.
func (m *Moderator) Censor(original string) string {
	origRunes := []rune(original)
	normalized, origIdx := normalize(origRunes)
	if len(normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Map the normalized span back onto the original rune positions.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}

	return string(origRunes)
}

// normalize lowercases, folds leet speak and drops noise runes. The
// second return value maps each normalized position back to the index of
// the originating rune.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))

	for i, r := range input {
		if folded, ok := leetFold[r]; ok {
			r = folded
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return normalized, origIdx
}
