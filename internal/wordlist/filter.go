package wordlist

import (
	"strings"
	"unicode"
)

const (
	// MaxTerms bounds the key terms sent to the recognizer.
	MaxTerms = 100
	// maxTermLen drops sentences pasted by mistake.
	maxTermLen = 50
)

// IsKeyTerm reports whether term can bias recognition: letters with
// optional inner spaces, apostrophes, hyphens and dots.
func IsKeyTerm(term string) bool {
	if term == "" || len(term) > maxTermLen {
		return false
	}
	letters := 0
	for _, r := range term {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ', r == '\'', r == '’', r == '-', r == '.':
		default:
			return false
		}
	}
	return letters > 0
}

// Merge appends the usable extra terms to base, skipping case-insensitive
// duplicates, and caps the result at limit entries (MaxTerms when limit <= 0).
// base keeps its order and wins when the cap is hit.
func Merge(base, extra []string, limit int) []string {
	if limit <= 0 {
		limit = MaxTerms
	}
	out := make([]string, 0, min(limit, len(base)+len(extra)))
	seen := map[string]struct{}{}
	add := func(term string) {
		term = strings.Join(strings.Fields(term), " ")
		key := strings.ToLower(term)
		if len(out) >= limit || !IsKeyTerm(term) {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	for _, t := range base {
		add(t)
	}
	for _, t := range extra {
		add(t)
	}
	return out
}
