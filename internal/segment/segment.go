// Package segment splits lines into practice segments and tracks progressive
// ("build") rehearsal of one line.
package segment

import (
	"strings"

	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
)

const (
	// WindowSize is the number of comparable words per generated segment.
	WindowSize = 4
	// MinWords is the smallest segment kept on its own.
	MinWords = 2
	// CheckpointEvery is the segment interval between persisted checkpoints.
	CheckpointEvery = 5
)

// BuildSegments splits the spoken text of a line into practice segments.
// Author-curated segments win over fixed windows.
func BuildSegments(line model.Line) []string {
	var chunks [][]string
	if len(line.PracticeSegments) > 0 {
		for _, seg := range line.PracticeSegments {
			words := strings.Fields(matcher.StripParentheticals(seg))
			if len(words) > 0 {
				chunks = append(chunks, words)
			}
		}
	}
	if len(chunks) == 0 {
		// Punctuation-only fields ride along with their window.
		var cur []string
		n := 0
		for _, f := range strings.Fields(matcher.StripParentheticals(line.Content)) {
			cur = append(cur, f)
			n += matcher.WordCount(f)
			if n >= WindowSize {
				chunks = append(chunks, cur)
				cur, n = nil, 0
			}
		}
		if len(cur) > 0 {
			chunks = append(chunks, cur)
		}
	}
	merged := mergeShort(chunks)
	out := make([]string, len(merged))
	for i, words := range merged {
		out[i] = strings.Join(words, " ")
	}
	return out
}

// mergeShort folds segments below MinWords into the previous segment, or
// into the next one when nothing precedes them.
func mergeShort(chunks [][]string) [][]string {
	out := make([][]string, 0, len(chunks))
	var pending []string
	for _, c := range chunks {
		words := append(append([]string(nil), pending...), c...)
		pending = nil
		if spokenWords(words) >= MinWords {
			out = append(out, words)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1] = append(out[len(out)-1], words...)
			continue
		}
		pending = words
	}
	if len(pending) > 0 {
		if len(out) > 0 {
			out[len(out)-1] = append(out[len(out)-1], pending...)
		} else if spokenWords(pending) > 0 {
			out = append(out, pending)
		}
	}
	return out
}

func spokenWords(chunk []string) int {
	return matcher.WordCount(strings.Join(chunk, " "))
}

// Accumulated joins segments 0..k, the text played and repeated at step k.
func Accumulated(segments []string, k int) string {
	if len(segments) == 0 {
		return ""
	}
	if k >= len(segments) {
		k = len(segments) - 1
	}
	if k < 0 {
		k = 0
	}
	return strings.Join(segments[:k+1], " ")
}

// IsCheckpoint reports whether arriving at index k records a checkpoint.
func IsCheckpoint(k, total int) bool {
	return k > 0 && k%CheckpointEvery == 0 && k < total
}
