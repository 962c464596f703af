package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/store"
)

func testScene() model.Scene {
	return model.Scene{
		ID:    "kitchen",
		Title: "Kitchen",
		Lines: []model.Line{
			{ID: "l1", CharacterName: "ANNA", Content: "Where were you last night?"},
			{ID: "l2", CharacterName: "BEN", Content: "I never said that.", IsUserLine: true},
			{ID: "l3", CharacterName: "ANNA", Content: "Fine."},
			{ID: "l4", CharacterName: "BEN", Content: "Then we agree.", IsUserLine: true},
			{ID: "l5", CharacterName: "BEN", Content: "Goodnight.", IsUserLine: true},
		},
	}
}

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "cueline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	base := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	attempts := []struct {
		line    string
		correct bool
		acc     float64
	}{
		{"l2", false, 50},
		{"l2", true, 100},
		{"l4", false, 40},
	}
	for i, a := range attempts {
		start := base.Add(time.Duration(i) * time.Minute)
		err := st.RecordAttempt(ctx, model.Attempt{
			ID:              string(rune('a' + i)),
			SessionID:       "s",
			UserID:          "u",
			ScriptID:        "kitchen",
			LineID:          a.line,
			Mode:            model.ModePractice,
			StartedAt:       start,
			EndedAt:         start.Add(3 * time.Second),
			Correct:         a.correct,
			AccuracyPercent: a.acc,
		})
		if err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}
	if err := st.MarkLineCompleted(ctx, "u", "kitchen", "l2"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := st.UpsertBuildProgress(ctx, "u", "l4", model.BuildProgress{CurrentSegmentIndex: 1, TotalSegments: 3}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for _, d := range []time.Time{base.AddDate(0, 0, -1), base} {
		if err := st.RecordPracticeDay(ctx, "u", d); err != nil {
			t.Fatalf("day: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, testScene(), model.StatsConfig{UserID: "u", Top: 1}, base)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.UserLines != 3 || len(report.Lines) != 3 {
		t.Fatalf("expected 3 user lines, got %+v", report.Lines)
	}
	if report.CompletedLines != 1 || report.Attempts != 3 || report.Correct != 1 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if got := report.Accuracy; got < 63.3 || got > 63.4 {
		t.Fatalf("expected weighted accuracy 63.3, got %.2f", got)
	}
	if len(report.Weak) != 1 || report.Weak[0].LineID != "l4" {
		t.Fatalf("expected l4 weakest, got %+v", report.Weak)
	}
	if report.Lines[0].Accuracy != 75 {
		t.Fatalf("expected l2 accuracy 75, got %v", report.Lines[0].Accuracy)
	}
	if BuildLabel(report.Lines[1].Build) != "2/3" || report.Lines[2].Build != nil {
		t.Fatalf("unexpected build progress %+v", report.Lines)
	}
	if report.CurrentStreak != 2 || report.BestStreak != 2 || report.PracticeDays != 2 {
		t.Fatalf("unexpected streak %+v", report)
	}

	var buf bytes.Buffer
	if err := RenderSummary(&buf, report); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	if err := RenderLineTable(&buf, report.Lines); err != nil {
		t.Fatalf("render table: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Lines learned: 1/3") {
		t.Fatalf("missing summary line:\n%s", out)
	}
	l4 := strings.Index(out, "\nl4 ")
	l2 := strings.Index(out, "\nl2 ")
	l5 := strings.Index(out, "\nl5 ")
	if l4 < 0 || l2 < 0 || l5 < 0 || !(l4 < l2 && l2 < l5) {
		t.Fatalf("expected rows ordered l4, l2, l5:\n%s", out)
	}
}
