package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/dispenser/dispatch"
)

// DefaultRefreshInterval is how often the dashboard repolls stats when no
// interval is given to NewStatsModel.
const DefaultRefreshInterval = 500 * time.Millisecond

// StatsProvider returns a dispatcher's current stats snapshot. Dispatchers
// expose this as their own Stats method, so a StatsProvider is usually
// just that method value.
type StatsProvider func() dispatch.Stats

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// StatsModel is a Bubble Tea model that polls a dispatcher's stats on a
// fixed interval and renders them as a row of stat boxes.
type StatsModel struct {
	name     string
	provider StatsProvider
	interval time.Duration
	stats    dispatch.Stats
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a stats model for the named dispatcher. interval
// of zero uses DefaultRefreshInterval.
func NewStatsModel(name string, provider StatsProvider, interval time.Duration) StatsModel {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return StatsModel{
		name:     name,
		provider: provider,
		interval: interval,
	}
}

func (m StatsModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.stats = m.provider()
		return m, m.tick()

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	title := TitleStyle.Render(fmt.Sprintf("Dispatcher: %s", m.name))

	boxes := []string{
		m.renderStatBox("Buffered", fmt.Sprintf("%d", m.stats.Buffered), highlightColor),
		m.renderStatBox("Subscribed", fmt.Sprintf("%d", m.stats.Subscribed), highlightColor),
		m.renderStatBox("Demand", fmt.Sprintf("%d", m.stats.Demand), warningColor),
		m.renderStatBox("Last Flush", lastFlushLabel(m.stats.LastFlushTrigger), triggerColor(string(m.stats.LastFlushTrigger))),
	}

	content := title + "\n\n" + lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func lastFlushLabel(trigger dispatch.FlushTrigger) string {
	if trigger == dispatch.TriggerNone {
		return "none"
	}
	return string(trigger)
}

func (m StatsModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return boxStyle.Render(content)
}

// Run starts the stats dashboard in the terminal's alt screen and blocks
// until the user quits.
func Run(name string, provider StatsProvider, interval time.Duration) error {
	model := NewStatsModel(name, provider, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatic renders one stats snapshot without running the interactive
// program, for non-TTY output (e.g. piped or scripted invocations).
func RenderStatic(name string, stats dispatch.Stats) string {
	m := StatsModel{name: name, stats: stats, width: 80, height: 24}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
