package triage

import (
	"strings"
	"unicode"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// normalize lower-cases, unifies apostrophes and collapses whitespace.
func normalize(s string) string {
	s = apostrophes.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// containsTerm reports whether term occurs in text on word boundaries.
// Both arguments must already be normalized.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(term); {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(text[i-1])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r := rune(text[i])
	return !isWordRune(r)
}

// isWordRune treats multi-byte UTF-8 bytes as word characters so accented
// names never split in the middle.
func isWordRune(r rune) bool {
	return r >= 0x80 || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// words splits normalized text into letter runs.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
