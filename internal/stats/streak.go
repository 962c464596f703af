package stats

import (
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Streak returns the number of consecutive practiced days ending today (or
// yesterday, when today has not been practiced yet) and the longest run.
func Streak(days []time.Time, today time.Time) (current, best int) {
	if len(days) == 0 {
		return 0, 0
	}
	practiced := make(map[string]struct{}, len(days))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		k := d.Format(dayLayout)
		if _, ok := practiced[k]; ok {
			continue
		}
		practiced[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	run := 0
	var prev time.Time
	for _, k := range keys {
		d, err := time.Parse(dayLayout, k)
		if err != nil {
			continue
		}
		if run > 0 && prev.AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
		prev = d
	}

	day := civil(today)
	if _, ok := practiced[day.Format(dayLayout)]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	for {
		if _, ok := practiced[day.Format(dayLayout)]; !ok {
			break
		}
		current++
		day = day.AddDate(0, 0, -1)
	}
	return current, best
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
