// Package matcher aligns spoken transcripts against expected script text.
//
// Text on both sides goes through the same normalization: parentheticals are
// removed, case is folded, punctuation is dropped, apostrophes are removed
// ("don't" and "dont" compare equal) and a few expanded contractions are
// collapsed ("do not" becomes "dont") so either spelling matches. A collapsed
// pair is one word everywhere: one verdict, one display word.
//
// Hesitations ("um", "uh") in a transcript are ignored unless the line itself
// scripts one.
package matcher

import (
	"strings"
	"unicode"
)

type token struct {
	norm    string
	display string
}

var canonicalWords = map[string]string{
	"okay":   "ok",
	"cannot": "cant",
	"mr":     "mister",
	"mrs":    "missus",
	"dr":     "doctor",
}

var contractionPairs = map[string]string{
	"do not":     "dont",
	"does not":   "doesnt",
	"did not":    "didnt",
	"is not":     "isnt",
	"are not":    "arent",
	"was not":    "wasnt",
	"were not":   "werent",
	"can not":    "cant",
	"will not":   "wont",
	"would not":  "wouldnt",
	"could not":  "couldnt",
	"should not": "shouldnt",
	"have not":   "havent",
	"has not":    "hasnt",
	"i am":       "im",
	"i have":     "ive",
	"i would":    "id",
	"you are":    "youre",
	"they are":   "theyre",
	"it is":      "its",
	"that is":    "thats",
	"what is":    "whats",
	"let us":     "lets",
}

var fillerWords = map[string]struct{}{
	"um":  {},
	"umm": {},
	"uh":  {},
	"uhh": {},
	"er":  {},
	"erm": {},
	"ah":  {},
	"hmm": {},
	"mm":  {},
}

// StripParentheticals removes (...) and [...] spans and collapses whitespace.
// Unbalanced closing brackets are dropped; an unclosed opening bracket hides
// the rest of the text.
func StripParentheticals(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '(', '[':
			depth++
			b.WriteRune(' ')
			continue
		case ')', ']':
			if depth > 0 {
				depth--
			}
			b.WriteRune(' ')
			continue
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words returns the display words of text after parentheticals are removed.
// Each entry lines up with one verdict from WordByWord.
func Words(text string) []string {
	toks := tokenize(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.display
	}
	return out
}

// WordCount returns the number of comparable words in text.
func WordCount(text string) int {
	return len(tokenize(text))
}

// SpokenWordCount counts transcript words, ignoring hesitation fillers.
func SpokenWordCount(transcript string) int {
	return len(dropFillers(tokenize(transcript)))
}

func tokenize(text string) []token {
	stripped := StripParentheticals(text)
	out := make([]token, 0, len(stripped)/4)
	cur := make([]rune, 0, 16)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		display := strings.Trim(string(cur), "'")
		cur = cur[:0]
		norm := normalizeWord(display)
		if norm == "" {
			return
		}
		out = append(out, token{norm: norm, display: display})
	}
	for _, r := range stripped {
		r = foldApostrophe(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return collapseContractions(out)
}

func foldApostrophe(r rune) rune {
	switch r {
	case '’', '‘', 'ʼ', '`':
		return '\''
	default:
		return r
	}
}

func normalizeWord(w string) string {
	w = strings.ToLower(strings.ReplaceAll(w, "'", ""))
	if c, ok := canonicalWords[w]; ok {
		return c
	}
	return w
}

func collapseContractions(toks []token) []token {
	if len(toks) < 2 {
		return toks
	}
	out := toks[:0:0]
	for i := 0; i < len(toks); i++ {
		if i+1 < len(toks) {
			if c, ok := contractionPairs[toks[i].norm+" "+toks[i+1].norm]; ok {
				display := toks[i].display
				if toks[i+1].display != display {
					display += " " + toks[i+1].display
				}
				out = append(out, token{norm: c, display: display})
				i++
				continue
			}
		}
		out = append(out, toks[i])
	}
	return out
}

func dropFillers(toks []token) []token {
	out := toks[:0:0]
	for _, t := range toks {
		if isFiller(t.norm) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isFiller(norm string) bool {
	_, ok := fillerWords[norm]
	return ok
}

// heardTokens tokenizes a transcript for comparison with exp. Hesitations
// are dropped unless the line scripts one.
func heardTokens(exp []token, transcript string) []token {
	heard := tokenize(transcript)
	for _, t := range exp {
		if isFiller(t.norm) {
			return heard
		}
	}
	return dropFillers(heard)
}
