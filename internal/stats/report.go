package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Title string
	Lines []LineRow
	Weak  []LineRow

	UserLines      int
	CompletedLines int
	Attempts       int
	Correct        int
	Accuracy       float64

	CurrentStreak int
	BestStreak    int
	PracticeDays  int
}

// BuildReport loads and prepares data for stats rendering. cfg.ScriptID
// defaults to the scene id.
func BuildReport(ctx context.Context, st store.Backend, scene model.Scene, cfg model.StatsConfig, today time.Time) (Report, error) {
	if cfg.ScriptID == "" {
		cfg.ScriptID = scene.ID
	}
	aggs, err := st.LineAggregates(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	completions, err := st.CompletedLines(ctx, cfg.UserID, cfg.ScriptID)
	if err != nil {
		return Report{}, err
	}
	builds, err := st.ListBuildProgress(ctx, cfg.UserID)
	if err != nil {
		return Report{}, err
	}
	days, err := st.PracticeDays(ctx, cfg.UserID)
	if err != nil {
		return Report{}, err
	}

	rows := BuildRows(scene, aggs, completions, builds)
	r := Report{
		Title:        scene.Title,
		Lines:        rows,
		Weak:         SelectWeakLines(rows, cfg.Top),
		UserLines:    len(rows),
		PracticeDays: len(days),
	}
	var accSum float64
	for _, row := range rows {
		if row.Completions > 0 {
			r.CompletedLines++
		}
		r.Attempts += row.Attempts
		r.Correct += row.Correct
		accSum += row.Accuracy * float64(row.Attempts)
	}
	if r.Attempts > 0 {
		r.Accuracy = accSum / float64(r.Attempts)
	}
	r.CurrentStreak, r.BestStreak = Streak(days, today)
	return r, nil
}
