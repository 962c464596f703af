package stats

import "sort"

// SelectWeakLines returns up to top rehearsed lines, lowest accuracy first.
// Lines without attempts are left out.
func SelectWeakLines(rows []LineRow, top int) []LineRow {
	candidates := make([]LineRow, 0, len(rows))
	for _, r := range rows {
		if r.Attempts > 0 {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return weaker(candidates[i], candidates[j]) })
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}

// weaker orders untried lines last, then by accuracy and scene position.
func weaker(a, b LineRow) bool {
	if (a.Attempts == 0) != (b.Attempts == 0) {
		return b.Attempts == 0
	}
	if a.Accuracy != b.Accuracy {
		return a.Accuracy < b.Accuracy
	}
	return a.Index < b.Index
}
