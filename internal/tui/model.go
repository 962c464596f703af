// Package tui provides the Bubble Tea rehearsal interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/cueline/internal/matcher"
	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/session"
)

// Controller receives the user's commands. *session.Engine implements it.
type Controller interface {
	Start()
	Skip()
	Retry()
	Next()
	Previous()
	Resume()
	RestartBuild()
	Continue()
	CycleMode()
	SetMode(mode model.LearningMode)
	Stop()
	Quit()
}

var _ Controller = (*session.Engine)(nil)

// SnapshotMsg carries engine state into the program.
type SnapshotMsg session.Snapshot

// DoneMsg reports that the engine stopped.
type DoneMsg struct {
	Err error
}

// MilestoneMsg announces a practice streak milestone.
type MilestoneMsg int

// Model implements the Bubble Tea rehearsal UI.
type Model struct {
	ctl     Controller
	snap    session.Snapshot
	spinner spinner.Model
	banner  string
	err     error

	width  int
	height int
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	missingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Strikethrough(true)
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	partnerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	directionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E")).Italic(true)
	speakerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	transcriptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	promptStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	bannerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	meterOnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	meterOffStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A"))
)

// NewModel constructs a rehearsal model driving ctl.
func NewModel(ctl Controller) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = currentWordStyle
	return &Model{ctl: ctl, spinner: sp}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case SnapshotMsg:
		m.snap = session.Snapshot(msg)
		return m, nil
	case MilestoneMsg:
		m.banner = fmt.Sprintf("%d-day streak!", int(msg))
		return m, nil
	case DoneMsg:
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

// Err returns the engine error that ended the program, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		m.ctl.Quit()
		return nil
	}
	switch msg.String() {
	case "q":
		m.ctl.Quit()
	case " ", "enter":
		m.ctl.Start()
	case "s":
		m.ctl.Skip()
	case "t":
		m.ctl.Retry()
	case "n", "right":
		m.ctl.Next()
	case "p", "left":
		m.ctl.Previous()
	case "r":
		m.ctl.Resume()
	case "0":
		m.ctl.RestartBuild()
	case "c":
		m.ctl.Continue()
	case "m":
		m.ctl.CycleMode()
	case "1":
		m.ctl.SetMode(model.ModeListen)
	case "2":
		m.ctl.SetMode(model.ModePractice)
	case "3":
		m.ctl.SetMode(model.ModeRepeat)
	case "x", "esc":
		m.ctl.Stop()
	}
	return nil
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := 72
	if m.width > 0 {
		contentWidth = max(1, int(float64(m.width)*0.70))
	}
	content := m.renderContent(contentWidth)
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	header := m.renderHeader()
	if m.height < 5 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 2
	top := lipgloss.Place(m.width, 1, lipgloss.Left, lipgloss.Top, header)
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return top + "\n" + body + "\n" + footerLine
}

func (m *Model) renderHeader() string {
	s := m.snap
	status := s.Status.String()
	if s.Status == model.StatusConnecting || s.Status == model.StatusPartnerSpeaking || s.Status == model.StatusNarrating {
		status = m.spinner.View() + " " + status
	}
	title := s.SceneTitle
	if title == "" {
		title = "cueline"
	}
	return footerStyle.Render(fmt.Sprintf("%s  %s  %s  directions:%s", title, s.Mode, status, s.Directions))
}

func (m *Model) renderContent(width int) string {
	s := m.snap
	var blocks []string

	line := s.Line
	switch {
	case s.TotalLines == 0:
		blocks = append(blocks, pendingStyle.Render("loading scene..."))
	case line.IsDirection():
		blocks = append(blocks, wrapPlain(line.Content, directionStyle, width))
	case line.IsUserLine:
		blocks = append(blocks, speakerStyle.Render(line.CharacterName+" (you)"))
		if line.Parenthetical != "" {
			blocks = append(blocks, directionStyle.Render("("+line.Parenthetical+")"))
		}
		if s.Mode == model.ModeListen {
			blocks = append(blocks, wrapPlain(line.Content, partnerStyle, width))
		} else {
			words := matcher.Words(s.Expected)
			listening := s.Status == model.StatusListening
			blocks = append(blocks, wrapStyledWords(buildStyledWords(words, s.Results, s.MatchedWords, listening), width))
		}
		if s.Mode == model.ModeRepeat && len(s.Segments) > 0 {
			blocks = append(blocks, footerStyle.Render(repeatInfo(s)))
		}
		if s.Status == model.StatusListening {
			blocks = append(blocks, levelMeter(s.Level))
		}
		if s.Transcript != "" {
			blocks = append(blocks, wrapPlain(s.Transcript, transcriptStyle, width))
		}
	default:
		blocks = append(blocks, speakerStyle.Render(line.CharacterName))
		blocks = append(blocks, wrapPlain(line.Content, partnerStyle, width))
	}

	if p := s.Prompt.String(); p != "" {
		blocks = append(blocks, promptStyle.Render(p))
	}
	if s.Err != nil {
		blocks = append(blocks, errorStyle.Render(s.Err.Error()))
	}
	if m.banner != "" {
		blocks = append(blocks, bannerStyle.Render(m.banner))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(blocks, "\n\n"))
}

func repeatInfo(s session.Snapshot) string {
	info := fmt.Sprintf("segment %d/%d", min(s.SegmentIndex+1, len(s.Segments)), len(s.Segments))
	if s.RepeatsLeft > 0 {
		info += fmt.Sprintf(" · full line x%d", s.RepeatsLeft)
	}
	return info
}

func (m *Model) renderFooter() string {
	s := m.snap
	if s.TotalLines == 0 {
		return ""
	}
	segments := []string{fmt.Sprintf("Line %d/%d", s.LineIndex+1, s.TotalLines)}
	if s.Accuracy > 0 || len(s.Results) > 0 {
		segments = append(segments, fmt.Sprintf("Accuracy %.0f%%", s.Accuracy))
	}
	segments = append(segments, fmt.Sprintf("Correct %d · Wrong %d · Learned %d", s.Correct, s.Wrong, s.Completed))
	if p := s.Pacing; p != nil {
		segments = append(segments, fmt.Sprintf("Pace %+.0f%% %s", p.DeltaPercent, p.Band))
	}
	segments = append(segments, "space start  s skip  n/p line  m/1-3 mode  q quit")
	return footerStyle.Render(strings.Join(segments, "  "))
}
