package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/cueline/internal/model"
)

type styledWord struct {
	s     string
	width int
}

// buildStyledWords colors the expected words. Scored results win; while
// listening, the first matched words are locked in and the next one is
// underlined.
func buildStyledWords(words []string, results []model.WordResult, matched int, listening bool) []styledWord {
	out := make([]styledWord, 0, len(words))
	for i, w := range words {
		style := pendingStyle
		switch {
		case len(results) == len(words):
			style = verdictStyle(results[i].Verdict)
		case i < matched:
			style = correctStyle
		case i == matched && listening:
			style = currentWordStyle.Underline(true)
		case i == matched:
			style = currentWordStyle
		}
		out = append(out, styledWord{
			s:     style.Render(w),
			width: runewidth.StringWidth(w),
		})
	}
	return out
}

func verdictStyle(v model.Verdict) lipgloss.Style {
	switch v {
	case model.VerdictCorrect:
		return correctStyle
	case model.VerdictWrong:
		return incorrectStyle
	default:
		return missingStyle
	}
}

func renderStyledWords(words []styledWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.s
	}
	return strings.Join(parts, " ")
}

// wrapStyledWords breaks words into lines no wider than width. A word wider
// than width gets a line of its own.
func wrapStyledWords(words []styledWord, width int) string {
	if width <= 0 {
		return renderStyledWords(words)
	}
	var lines []string
	var line []styledWord
	lineWidth := 0
	for _, w := range words {
		next := lineWidth + w.width
		if len(line) > 0 {
			next++
		}
		if next > width && len(line) > 0 {
			lines = append(lines, renderStyledWords(line))
			line = line[:0]
			next = w.width
		}
		line = append(line, w)
		lineWidth = next
	}
	if len(line) > 0 {
		lines = append(lines, renderStyledWords(line))
	}
	return strings.Join(lines, "\n")
}

// wrapPlain wraps unstyled text the same way.
func wrapPlain(text string, style lipgloss.Style, width int) string {
	fields := strings.Fields(text)
	words := make([]styledWord, len(fields))
	for i, f := range fields {
		words[i] = styledWord{s: style.Render(f), width: runewidth.StringWidth(f)}
	}
	return wrapStyledWords(words, width)
}

const (
	meterCells = 12
	// Speech RMS rarely exceeds 0.25.
	meterGain = 4
)

// levelMeter renders an RMS input level as a bar.
func levelMeter(level float64) string {
	level = min(max(level*meterGain, 0), 1)
	filled := int(level*meterCells + 0.5)
	return meterOnStyle.Render(strings.Repeat("|", filled)) +
		meterOffStyle.Render(strings.Repeat(".", meterCells-filled))
}
