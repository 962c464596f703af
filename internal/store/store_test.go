package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/cueline/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "cueline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestBuildProgressRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	got, err := st.GetBuildProgress(ctx, "u", "l1")
	if err != nil || got != nil {
		t.Fatalf("expected no progress, got %+v (%v)", got, err)
	}

	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := model.BuildProgress{
		CurrentSegmentIndex: 3,
		TotalSegments:       6,
		HighestCheckpoint:   3,
		CheckpointIndices:   []int{0, 3},
		UpdatedAt:           updated,
	}
	if err := st.UpsertBuildProgress(ctx, "u", "l1", p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p.CurrentSegmentIndex = 5
	p.IsComplete = true
	if err := st.UpsertBuildProgress(ctx, "u", "l1", p); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err = st.GetBuildProgress(ctx, "u", "l1")
	if err != nil || got == nil {
		t.Fatalf("get: %+v (%v)", got, err)
	}
	if got.CurrentSegmentIndex != 5 || !got.IsComplete || got.TotalSegments != 6 {
		t.Fatalf("unexpected progress %+v", got)
	}
	if len(got.CheckpointIndices) != 2 || got.CheckpointIndices[1] != 3 {
		t.Fatalf("unexpected checkpoints %v", got.CheckpointIndices)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected updated_at %v", got.UpdatedAt)
	}

	if err := st.UpsertBuildProgress(ctx, "u", "l2", model.BuildProgress{TotalSegments: 2}); err != nil {
		t.Fatalf("upsert l2: %v", err)
	}
	all, err := st.ListBuildProgress(ctx, "u")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(all), err)
	}
	if all["l2"].CheckpointIndices != nil {
		t.Fatalf("expected no checkpoints for l2, got %v", all["l2"].CheckpointIndices)
	}

	if err := st.DeleteBuildProgress(ctx, "u", "l1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = st.GetBuildProgress(ctx, "u", "l1")
	if err != nil || got != nil {
		t.Fatalf("expected progress deleted, got %+v (%v)", got, err)
	}
}

func TestCompletedLines(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, line := range []string{"l1", "l1", "l2"} {
		if err := st.MarkLineCompleted(ctx, "u", "kitchen", line); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}
	if err := st.MarkLineCompleted(ctx, "u", "other", "l1"); err != nil {
		t.Fatalf("mark other: %v", err)
	}
	done, err := st.CompletedLines(ctx, "u", "kitchen")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if done["l1"] != 2 || done["l2"] != 1 || len(done) != 2 {
		t.Fatalf("unexpected completions %v", done)
	}
}

func TestLineAggregates(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	attempts := []model.Attempt{
		{ID: "a1", LineID: "l1", Correct: true, AccuracyPercent: 100, Pacing: &model.PacingSample{UserDurationMs: 1100, TargetDurationMs: 1000, DeltaPercent: 10}},
		{ID: "a2", LineID: "l1", Correct: false, AccuracyPercent: 50},
		{ID: "a3", LineID: "l2", Correct: true, AccuracyPercent: 90, Pacing: &model.PacingSample{HasPickup: true, PickupMs: 300, DeltaPercent: -20}},
		{ID: "a4", LineID: "l2", ScriptID: "other", Correct: true, AccuracyPercent: 100},
	}
	for i, a := range attempts {
		a.UserID = "u"
		a.SessionID = "s"
		if a.ScriptID == "" {
			a.ScriptID = "kitchen"
		}
		a.Mode = model.ModePractice
		a.StartedAt = base.Add(time.Duration(i) * time.Minute)
		a.EndedAt = a.StartedAt.Add(5 * time.Second)
		if err := st.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("record %s: %v", a.ID, err)
		}
	}

	aggs, err := st.LineAggregates(ctx, model.StatsConfig{UserID: "u", ScriptID: "kitchen"})
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 lines, got %+v", aggs)
	}
	l1 := aggs[0]
	if l1.LineID != "l1" || l1.Attempts != 2 || l1.Correct != 1 || l1.AccuracySum != 150 {
		t.Fatalf("unexpected l1 aggregate %+v", l1)
	}
	if l1.DeltaCount != 1 || l1.DeltaSum != 10 {
		t.Fatalf("unexpected l1 pacing %+v", l1)
	}
	if !l1.LastAttemptedAt.Equal(base.Add(time.Minute + 5*time.Second)) {
		t.Fatalf("unexpected last attempt %v", l1.LastAttemptedAt)
	}

	since := base.Add(90 * time.Second)
	aggs, err = st.LineAggregates(ctx, model.StatsConfig{UserID: "u", Since: &since})
	if err != nil {
		t.Fatalf("aggregates since: %v", err)
	}
	if len(aggs) != 1 || aggs[0].LineID != "l2" || aggs[0].Attempts != 2 {
		t.Fatalf("unexpected filtered aggregates %+v", aggs)
	}
}

func TestPracticeDays(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 2, 21, 0, 0, 0, time.Local)
	day0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	for _, d := range []time.Time{day1, day1.Add(time.Hour), day0} {
		if err := st.RecordPracticeDay(ctx, "u", d); err != nil {
			t.Fatalf("record day: %v", err)
		}
	}
	days, err := st.PracticeDays(ctx, "u")
	if err != nil {
		t.Fatalf("days: %v", err)
	}
	if len(days) != 2 || days[0].Day() != 1 || days[1].Day() != 2 {
		t.Fatalf("unexpected days %v", days)
	}
}

func TestOpenBackendDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cueline.db")
	b, err := OpenBackend(context.Background(), "  ", path)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*Store); !ok {
		t.Fatalf("expected sqlite store, got %T", b)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestRecordingsSave(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecordings(dir)
	attempt := model.Attempt{ID: "a1", ScriptID: "kitchen", LineID: "l2"}

	if err := rec.SaveRecording(context.Background(), attempt, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if _, err := os.Stat(rec.Path(attempt)); !os.IsNotExist(err) {
		t.Fatalf("expected no file for empty audio, got %v", err)
	}

	if err := rec.SaveRecording(context.Background(), attempt, make([]byte, 640)); err != nil {
		t.Fatalf("save: %v", err)
	}
	want := filepath.Join(dir, "kitchen", "l2-a1.wav")
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("stat recording: %v", err)
	}
	if info.Size() != 44+640 {
		t.Fatalf("unexpected wav size %d", info.Size())
	}
}
