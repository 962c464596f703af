package stats

import (
	"context"
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		days    []time.Time
		current int
		best    int
	}{
		{"none", nil, 0, 0},
		{"today only", []time.Time{date(2026, 3, 10)}, 1, 1},
		{"ends yesterday", []time.Time{date(2026, 3, 8), date(2026, 3, 9)}, 2, 2},
		{"broken", []time.Time{date(2026, 3, 1), date(2026, 3, 2), date(2026, 3, 3), date(2026, 3, 10)}, 1, 3},
		{"duplicates", []time.Time{date(2026, 3, 10), date(2026, 3, 10), date(2026, 3, 9)}, 2, 2},
		{"month boundary", []time.Time{date(2026, 2, 28), date(2026, 3, 1), date(2026, 3, 2)}, 0, 3},
	}
	for _, tt := range tests {
		current, best := Streak(tt.days, today)
		if current != tt.current || best != tt.best {
			t.Fatalf("%s: got (%d, %d), want (%d, %d)", tt.name, current, best, tt.current, tt.best)
		}
	}
}

type memDays struct {
	days []time.Time
	fail bool
}

func (m *memDays) RecordPracticeDay(_ context.Context, _ string, day time.Time) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.days = append(m.days, day)
	return nil
}

func (m *memDays) PracticeDays(context.Context, string) ([]time.Time, error) {
	return m.days, nil
}

func TestAchievementsMilestones(t *testing.T) {
	st := &memDays{days: []time.Time{date(2026, 3, 7), date(2026, 3, 8), date(2026, 3, 9)}}
	a := NewAchievements(st, nil)
	a.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	var got []int
	a.OnMilestone = func(days int) { got = append(got, days) }

	a.LineCompleted(context.Background(), "u", "l2")
	a.LineCompleted(context.Background(), "u", "l4")
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected one 3-day milestone, got %v", got)
	}
	if len(st.days) != 5 {
		t.Fatalf("expected practice day recorded per completion, got %d", len(st.days))
	}
}

func TestAchievementsStoreFailure(t *testing.T) {
	a := NewAchievements(&memDays{fail: true}, nil)
	called := false
	a.OnMilestone = func(int) { called = true }
	a.LineCompleted(context.Background(), "u", "l2")
	if called {
		t.Fatalf("expected no milestone on store failure")
	}
}

func TestSelectWeakLines(t *testing.T) {
	rows := []LineRow{
		{LineID: "a", Index: 0, Attempts: 2, Accuracy: 80},
		{LineID: "b", Index: 1},
		{LineID: "c", Index: 2, Attempts: 1, Accuracy: 40},
		{LineID: "d", Index: 3, Attempts: 4, Accuracy: 80},
	}
	weak := SelectWeakLines(rows, 2)
	if len(weak) != 2 || weak[0].LineID != "c" || weak[1].LineID != "a" {
		t.Fatalf("unexpected weak lines %+v", weak)
	}
	if all := SelectWeakLines(rows, 0); len(all) != 3 {
		t.Fatalf("expected untried lines dropped, got %+v", all)
	}
	top := TopLinesByAttempts(rows, 3)
	if len(top) != 3 || top[0] != "d" || top[1] != "a" || top[2] != "c" {
		t.Fatalf("unexpected top lines %v", top)
	}
}
