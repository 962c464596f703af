package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DayStore records the days a user practiced.
type DayStore interface {
	RecordPracticeDay(ctx context.Context, userID string, day time.Time) error
	PracticeDays(ctx context.Context, userID string) ([]time.Time, error)
}

var streakMilestones = []int{3, 7, 14, 30, 100}

// Achievements tracks practice streaks as lines get completed.
type Achievements struct {
	store  DayStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	announced map[int]bool
	// OnMilestone, when set, is called once per reached streak milestone.
	OnMilestone func(days int)
}

// NewAchievements returns a tracker writing to st.
func NewAchievements(st DayStore, logger *slog.Logger) *Achievements {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Achievements{
		store:     st,
		logger:    logger,
		now:       time.Now,
		announced: map[int]bool{},
	}
}

// LineCompleted marks today as practiced and reports new streak milestones.
func (a *Achievements) LineCompleted(ctx context.Context, userID, lineID string) {
	today := a.now()
	if err := a.store.RecordPracticeDay(ctx, userID, today); err != nil {
		a.logger.Warn("record practice day", "user", userID, "err", err)
		return
	}
	days, err := a.store.PracticeDays(ctx, userID)
	if err != nil {
		a.logger.Warn("load practice days", "user", userID, "err", err)
		return
	}
	current, _ := Streak(days, today)

	a.mu.Lock()
	defer a.mu.Unlock()
	reached := 0
	for _, m := range streakMilestones {
		if current < m || a.announced[m] {
			continue
		}
		a.announced[m] = true
		reached = m
	}
	if reached == 0 {
		return
	}
	// Only the highest new milestone is reported.
	a.logger.Info("streak milestone", "user", userID, "days", reached, "line", lineID)
	if a.OnMilestone != nil {
		a.OnMilestone(reached)
	}
}
