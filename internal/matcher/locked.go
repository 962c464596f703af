package matcher

import "strings"

// LockedWordState records how many expected words are confirmed for the
// current listening attempt.
type LockedWordState struct {
	// LockedCount never decreases within one attempt.
	LockedCount int
	// HasError is set when the next unlocked expected word conflicts with
	// what was just heard.
	HasError bool
}

// NewState returns the state for a fresh listening attempt.
func NewState() LockedWordState {
	return LockedWordState{}
}

// anchorLookahead bounds how far ahead a locked word is searched for when
// re-finding the transcript tail.
const anchorLookahead = 2

// MatchUpdate confirms further expected words from the transcript heard so
// far. Words below prior.LockedCount are never re-examined, so a recognizer
// rewriting its earlier output cannot unlock them.
func MatchUpdate(expected, transcript string, prior LockedWordState, biasTokens []string) LockedWordState {
	exp := tokenize(expected)
	heard := heardTokens(exp, transcript)
	cmp := newComparer(false, biasTokens)

	locked := prior.LockedCount
	if locked > len(exp) {
		return LockedWordState{LockedCount: prior.LockedCount}
	}

	j := anchor(exp[:locked], heard, cmp)
	i := locked
	for i < len(exp) && j < len(heard) {
		if cmp.match(exp[i].norm, heard[j].norm) {
			i++
			j++
			continue
		}
		// A scripted hesitation may go unsaid.
		if isFiller(exp[i].norm) {
			i++
			continue
		}
		// A single stumble or repeated word before the expected one.
		if j+1 < len(heard) && cmp.match(exp[i].norm, heard[j+1].norm) {
			i++
			j += 2
			continue
		}
		break
	}

	state := LockedWordState{LockedCount: i}
	if i < len(exp) && j < len(heard) {
		last := j == len(heard)-1
		// The final word of a partial transcript is often cut short.
		stillForming := last && strings.HasPrefix(exp[i].norm, heard[j].norm)
		state.HasError = !stillForming
	}
	return state
}

// anchor returns the transcript index just past the words that account for
// the already locked prefix. A locked word that cannot be found is assumed to
// have been rewritten in place.
func anchor(locked, heard []token, cmp comparer) int {
	j := 0
	for _, t := range locked {
		found := -1
		for k := j; k < len(heard) && k <= j+anchorLookahead; k++ {
			if cmp.match(t.norm, heard[k].norm) {
				found = k
				break
			}
		}
		switch {
		case found >= 0:
			j = found + 1
		case isFiller(t.norm):
		case j < len(heard):
			j++
		}
	}
	return j
}
