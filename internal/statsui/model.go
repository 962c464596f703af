// Package statsui provides the Bubble Tea progress interface.
package statsui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/cueline/internal/model"
	"github.com/verte-zerg/cueline/internal/stats"
	"github.com/verte-zerg/cueline/internal/store"
)

const (
	tabOverview = iota
	tabLines
)

const weakCount = 5

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	weakStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0A040"))
)

// Model implements the Bubble Tea progress UI for one scene.
type Model struct {
	store store.Backend
	scene model.Scene
	cfg   model.StatsConfig
	now   func() time.Time

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	lines     table.Model

	width  int
	height int
}

// NewModel constructs a progress UI model and loads the first report.
func NewModel(st store.Backend, scene model.Scene, cfg model.StatsConfig) *Model {
	m := &Model{
		store:    st,
		scene:    scene,
		cfg:      cfg,
		now:      time.Now,
		tabs:     []string{"Overview", "Lines"},
		overview: viewport.New(0, 0),
		lines: table.New(
			table.WithColumns(lineColumns(80)),
			table.WithStyles(lineTableStyles()),
		),
	}
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.refreshReport()
			return m, nil
		case "g", "home":
			if m.activeTab == tabLines {
				m.lines.GotoTop()
			} else {
				m.overview.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabLines {
				m.lines.GotoBottom()
			} else {
				m.overview.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabLines {
			m.lines, cmd = m.lines.Update(msg)
		} else {
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.lines.SetColumns(lineColumns(m.width))
	m.lines.SetWidth(m.width)
	m.lines.SetHeight(bodyHeight)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabLines {
		m.lines.Focus()
	} else {
		m.lines.Blur()
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.scene, m.cfg, m.now())
	if err != nil {
		m.errMsg = err.Error()
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.lines.SetRows(lineRows(report.Lines))
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	title := m.scene.Title
	if title == "" {
		title = m.scene.ID
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	summary := fmt.Sprintf("Scene: %s  as %s  since=%s", title, m.scene.UserCharacter, since)
	return m.renderTabs() + "\n" + headerStyle.Render(stats.Truncate(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody() string {
	if m.activeTab == tabLines {
		if len(m.report.Lines) == 0 {
			return "No lines found."
		}
		return tableMutedStyle.Render(m.lines.View())
	}
	return m.overview.View()
}

func renderOverview(r stats.Report, width int) string {
	if r.UserLines == 0 {
		return "No lines found."
	}
	cards := []string{
		metricCard("Learned", fmt.Sprintf("%d/%d", r.CompletedLines, r.UserLines)),
		metricCard("Attempts", fmt.Sprintf("%d", r.Attempts)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", r.Accuracy)),
		metricCard("Streak", fmt.Sprintf("%d days", r.CurrentStreak)),
		metricCard("Best", fmt.Sprintf("%d days", r.BestStreak)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
		summary = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}
	return summary + "\n\n" + renderWeak(r.Weak, width)
}

func renderWeak(rows []stats.LineRow, width int) string {
	if len(rows) == 0 {
		return headerStyle.Render("No attempts yet.")
	}
	lines := []string{cardTitleStyle.Render("Weakest lines")}
	for _, r := range rows[:min(len(rows), weakCount)] {
		label := fmt.Sprintf("%-6s %6s  ", r.LineID, stats.AccuracyLabel(r))
		text := stats.Truncate(r.Text, max(10, width-len(label)))
		lines = append(lines, weakStyle.Render(label)+text)
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func lineColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Line", Width: 6},
		{Title: "Attempts", Width: 8},
		{Title: "Accuracy", Width: 9},
		{Title: "Pace", Width: 14},
		{Title: "Build", Width: 6},
		{Title: "Learned", Width: 7},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 1
	}
	text := table.Column{Title: "Text", Width: max(12, width-used-1)}
	return append([]table.Column{fixed[0], text}, fixed[1:]...)
}

func lineRows(rows []stats.LineRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.LineID,
			r.Text,
			fmt.Sprintf("%d", r.Attempts),
			stats.AccuracyLabel(r),
			stats.PaceLabel(r),
			stats.BuildLabel(r.Build),
			fmt.Sprintf("%d", r.Completions),
		})
	}
	return out
}

func lineTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
