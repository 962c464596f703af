// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/pacing"
)

const textColumnWidth = 40

// LineRow summarizes the rehearsal history of one user line.
type LineRow struct {
	LineID    string
	Index     int
	Character string
	Text      string

	Attempts  int
	Correct   int
	Accuracy  float64
	AvgDelta  float64
	HasPacing bool
	LastAt    time.Time

	Completions int
	Build       *model.BuildProgress
}

// LineAccuracy returns the mean word accuracy of the attempts, in percent.
func LineAccuracy(agg model.LineAggregate) float64 {
	if agg.Attempts == 0 {
		return 0
	}
	return agg.AccuracySum / float64(agg.Attempts)
}

// AverageDelta returns the mean pacing delta, if any attempt was timed.
func AverageDelta(agg model.LineAggregate) (float64, bool) {
	if agg.DeltaCount == 0 {
		return 0, false
	}
	return agg.DeltaSum / float64(agg.DeltaCount), true
}

// BuildRows joins scene lines with stored data. Only the user's lines are
// returned, in scene order.
func BuildRows(scene model.Scene, aggs []model.LineAggregate, completions map[string]int, builds map[string]model.BuildProgress) []LineRow {
	byLine := make(map[string]model.LineAggregate, len(aggs))
	for _, agg := range aggs {
		byLine[agg.LineID] = agg
	}
	var rows []LineRow
	for i, line := range scene.Lines {
		if !line.IsUserLine {
			continue
		}
		row := LineRow{
			LineID:      line.ID,
			Index:       i,
			Character:   line.CharacterName,
			Text:        line.Content,
			Completions: completions[line.ID],
		}
		if agg, ok := byLine[line.ID]; ok {
			row.Attempts = agg.Attempts
			row.Correct = agg.Correct
			row.Accuracy = LineAccuracy(agg)
			row.AvgDelta, row.HasPacing = AverageDelta(agg)
			row.LastAt = agg.LastAttemptedAt
		}
		if p, ok := builds[line.ID]; ok {
			p := p
			row.Build = &p
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildLabel describes repeat-mode progress of a line.
func BuildLabel(p *model.BuildProgress) string {
	switch {
	case p == nil:
		return "-"
	case p.IsComplete:
		return "done"
	default:
		return fmt.Sprintf("%d/%d", p.CurrentSegmentIndex+1, p.TotalSegments)
	}
}

// PaceLabel formats the average pacing delta with its band.
func PaceLabel(row LineRow) string {
	if !row.HasPacing {
		return "-"
	}
	return fmt.Sprintf("%+.0f%% %s", row.AvgDelta, pacing.Classify(row.AvgDelta))
}

// RenderSummary prints the headline numbers of a report.
func RenderSummary(w io.Writer, r Report) error {
	if _, err := fmt.Fprintf(w, "Summary: %s\n", r.Title); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Lines learned: %d/%d\n", r.CompletedLines, r.UserLines); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Attempts: %d (%d correct)\n", r.Attempts, r.Correct); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Avg Accuracy: %.1f%%\n", r.Accuracy); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Streak: %d days (best %d, %d practiced)\n", r.CurrentStreak, r.BestStreak, r.PracticeDays); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderLineTable prints per-line aggregates, weakest first.
func RenderLineTable(w io.Writer, rows []LineRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No lines found.")
		return err
	}
	sorted := append([]LineRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return weaker(sorted[i], sorted[j]) })

	if _, err := fmt.Fprintln(w, "Per-Line"); err != nil {
		return err
	}
	headers := []string{"Line", "Text", "Attempts", "Accuracy", "Pace", "Build", "Learned"}
	tableRows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		tableRows = append(tableRows, []string{
			r.LineID,
			Truncate(r.Text, textColumnWidth),
			fmt.Sprintf("%d", r.Attempts),
			AccuracyLabel(r),
			PaceLabel(r),
			BuildLabel(r.Build),
			fmt.Sprintf("%d", r.Completions),
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 6: true}
	for _, line := range formatTable(headers, tableRows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// AccuracyLabel formats the mean accuracy, or "-" for untried lines.
func AccuracyLabel(r LineRow) string {
	if r.Attempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", r.Accuracy)
}
