package stats

import "sort"

// TopLinesByAttempts returns the ids of the n most rehearsed lines.
func TopLinesByAttempts(rows []LineRow, n int) []string {
	if n <= 0 || len(rows) == 0 {
		return nil
	}
	items := append([]LineRow(nil), rows...)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Attempts == items[j].Attempts {
			return items[i].Index < items[j].Index
		}
		return items[i].Attempts > items[j].Attempts
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, r := range items[:n] {
		if r.Attempts == 0 {
			break
		}
		out = append(out, r.LineID)
	}
	return out
}
