package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	// Words at least this long tolerate one edit in fuzzy mode.
	fuzzyMinLen = 4
	// Words at least this long tolerate two edits in fuzzy mode.
	fuzzyLongLen = 8
	// Minimum Jaro-Winkler score for phonetically equal ordinary words.
	phoneticJW = 0.80
	// Minimum Jaro-Winkler score for a bias token without a phonetic hit.
	biasJW = 0.80
)

// comparer decides whether a heard word counts as an expected word.
type comparer struct {
	strict bool
	bias   map[string]struct{}
}

func newComparer(strict bool, biasTokens []string) comparer {
	c := comparer{strict: strict, bias: make(map[string]struct{}, len(biasTokens))}
	for _, b := range biasTokens {
		for _, t := range tokenize(b) {
			c.bias[t.norm] = struct{}{}
		}
	}
	return c
}

func (c comparer) match(expected, heard string) bool {
	if expected == heard {
		return true
	}
	if expected == "" || heard == "" {
		return false
	}
	// Recognizers spell hesitations inconsistently.
	if isFiller(expected) && isFiller(heard) {
		return true
	}
	// Recognizers consistently misspell names, so bias tokens keep their
	// tolerance in strict mode as well.
	if _, ok := c.bias[expected]; ok {
		return biasMatch(expected, heard)
	}
	if c.strict {
		return false
	}
	return fuzzyMatch(expected, heard)
}

func fuzzyMatch(expected, heard string) bool {
	el := utf8.RuneCountInString(expected)
	hl := utf8.RuneCountInString(heard)
	if el >= fuzzyMinLen && hl >= fuzzyMinLen-1 {
		d := matchr.Levenshtein(expected, heard)
		if d <= 1 || (el >= fuzzyLongLen && d <= 2) {
			return true
		}
	}
	if el < 3 || hl < 3 {
		return false
	}
	ep, _ := matchr.DoubleMetaphone(expected)
	hp, _ := matchr.DoubleMetaphone(heard)
	if ep == "" || ep != hp {
		return false
	}
	return matchr.JaroWinkler(expected, heard, false) >= phoneticJW
}

func biasMatch(expected, heard string) bool {
	if fuzzyMatch(expected, heard) {
		return true
	}
	if codesOverlap(expected, heard) {
		return true
	}
	if matchr.JaroWinkler(expected, heard, false) >= biasJW {
		return true
	}
	return utf8.RuneCountInString(expected) >= fuzzyMinLen && matchr.Levenshtein(expected, heard) <= 2
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// BiasText joins bias tokens into a recognizer prompt.
func BiasText(biasTokens []string) string {
	seen := make(map[string]struct{}, len(biasTokens))
	out := make([]string, 0, len(biasTokens))
	for _, b := range biasTokens {
		b = strings.TrimSpace(b)
		key := strings.ToLower(b)
		if b == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return strings.Join(out, ", ")
}
