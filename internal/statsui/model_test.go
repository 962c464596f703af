package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/store"
)

func TestModelRendersProgress(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cueline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	scene := model.Scene{
		ID:            "kitchen",
		Title:         "Kitchen",
		UserCharacter: "BEN",
		Lines: []model.Line{
			{ID: "l1", CharacterName: "ANNA", Content: "Where were you?"},
			{ID: "l2", CharacterName: "BEN", Content: "I never said that.", IsUserLine: true},
		},
	}
	now := time.Now()
	err = st.RecordAttempt(context.Background(), model.Attempt{
		ID: "a1", SessionID: "s", UserID: "u", ScriptID: "kitchen", LineID: "l2",
		StartedAt: now, EndedAt: now, AccuracyPercent: 50,
	})
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	m := NewModel(st, scene, model.StatsConfig{UserID: "u"})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	if !strings.Contains(view, "Learned") || !strings.Contains(view, "Weakest lines") {
		t.Fatalf("expected overview cards:\n%s", view)
	}
	if !strings.Contains(view, "50.0%") {
		t.Fatalf("expected line accuracy in overview:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	view = m.View()
	if !strings.Contains(view, "I never said that.") {
		t.Fatalf("expected line table:\n%s", view)
	}
	if m.errMsg != "" {
		t.Fatalf("unexpected error %q", m.errMsg)
	}
}
