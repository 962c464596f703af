package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/session"
)

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{snap: session.Snapshot{
		LineIndex:  2,
		TotalLines: 8,
		Accuracy:   87.4,
		Results:    []model.WordResult{{Word: "fine", Verdict: model.VerdictCorrect}},
		Correct:    3,
		Wrong:      1,
		Completed:  2,
		Pacing:     &model.PacingSample{DeltaPercent: 12, Band: model.PacingCaution},
	}}
	out := m.renderFooter()
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"Line 3/8", "Accuracy 87%", "Correct 3", "Wrong 1", "Learned 2", "Pace +12% caution"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestRenderFooterEmptyBeforeScene(t *testing.T) {
	m := &Model{}
	if out := m.renderFooter(); out != "" {
		t.Fatalf("expected empty footer, got %q", out)
	}
}

type recordingController struct {
	calls []string
}

func (c *recordingController) Start()        { c.calls = append(c.calls, "start") }
func (c *recordingController) Skip()         { c.calls = append(c.calls, "skip") }
func (c *recordingController) Retry()        { c.calls = append(c.calls, "retry") }
func (c *recordingController) Next()         { c.calls = append(c.calls, "next") }
func (c *recordingController) Previous()     { c.calls = append(c.calls, "previous") }
func (c *recordingController) Resume()       { c.calls = append(c.calls, "resume") }
func (c *recordingController) RestartBuild() { c.calls = append(c.calls, "restart") }
func (c *recordingController) Continue()     { c.calls = append(c.calls, "continue") }
func (c *recordingController) CycleMode()    { c.calls = append(c.calls, "mode") }
func (c *recordingController) Stop()         { c.calls = append(c.calls, "stop") }
func (c *recordingController) SetMode(mode model.LearningMode) {
	c.calls = append(c.calls, "set-"+mode.String())
}
func (c *recordingController) Quit()         { c.calls = append(c.calls, "quit") }

func TestKeysDriveController(t *testing.T) {
	ctl := &recordingController{}
	m := NewModel(ctl)
	keys := []tea.KeyMsg{
		{Type: tea.KeySpace, Runes: []rune{' '}},
		{Type: tea.KeyRunes, Runes: []rune{'s'}},
		{Type: tea.KeyRunes, Runes: []rune{'n'}},
		{Type: tea.KeyRunes, Runes: []rune{'p'}},
		{Type: tea.KeyRunes, Runes: []rune{'r'}},
		{Type: tea.KeyRunes, Runes: []rune{'0'}},
		{Type: tea.KeyRunes, Runes: []rune{'c'}},
		{Type: tea.KeyRunes, Runes: []rune{'m'}},
		{Type: tea.KeyRunes, Runes: []rune{'3'}},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}
	for _, k := range keys {
		m.Update(k)
	}
	want := []string{"start", "skip", "next", "previous", "resume", "restart", "continue", "mode", "set-repeat", "stop", "quit"}
	if strings.Join(ctl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls %v", ctl.calls)
	}
}

func TestViewShowsUserLine(t *testing.T) {
	m := NewModel(&recordingController{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 24})
	m.Update(SnapshotMsg(session.Snapshot{
		SceneTitle: "Kitchen",
		Mode:       model.ModePractice,
		Status:     model.StatusListening,
		TotalLines: 4,
		LineIndex:  1,
		Line:       model.Line{ID: "l2", CharacterName: "BEN", Content: "I never said that", IsUserLine: true},
		Expected:   "I never said that",
		Transcript: "I never",
		Prompt:     session.PromptNudge,
	}))
	view := m.View()
	if !containsAll(view, []string{"Kitchen", "BEN (you)", "never", "said", "your line", "Line 2/4"}) {
		t.Fatalf("view missing expected content:\n%s", view)
	}
}

func TestDoneQuits(t *testing.T) {
	m := NewModel(&recordingController{})
	boom := errors.New("boom")
	_, cmd := m.Update(DoneMsg{Err: boom})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if !errors.Is(m.Err(), boom) {
		t.Fatalf("expected engine error kept, got %v", m.Err())
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
