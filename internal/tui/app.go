// Package tui is an optional live dashboard over the bridge's in-process
// stats: one row per bulb showing lastSent, queue depth, and sent/dropped
// counters, plus a discovery pane. Built the way Tuhis-sacn-monitor's
// live universe view is: a bubbletea Model polled on a tick, lipgloss for
// styling.
package tui

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"wizbridge/internal/bridge"
	"wizbridge/internal/discovery"
)

var (
	cyanColor  = lipgloss.Color("#00FFFF")
	grayColor  = lipgloss.Color("#666666")
	whiteColor = lipgloss.Color("#FFFFFF")
	redColor   = lipgloss.Color("#FF6666")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(whiteColor).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(cyanColor)
	rowStyle    = lipgloss.NewStyle().Foreground(whiteColor)
	droppedWarn = lipgloss.NewStyle().Foreground(redColor)
	helpStyle   = lipgloss.NewStyle().Foreground(grayColor)
)

var keys = struct {
	Quit key.Binding
}{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Source is the read-only view the dashboard polls. *bridge.Bridge
// satisfies it.
type Source interface {
	Rows() []bridge.BulbRow
}

// DiscoverFunc runs one discovery pass for the dashboard's discovery pane.
// Satisfied by a closure over discovery.Scan.
type DiscoverFunc func(ctx context.Context) ([]discovery.Result, error)

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx       context.Context
	source    Source
	discover  DiscoverFunc
	rows      []bridge.BulbRow
	discovery []discovery.Result
	discErr   error
	width     int
	height    int
}

// NewModel builds a dashboard model over source. discover may be nil, in
// which case the discovery pane stays empty.
func NewModel(ctx context.Context, source Source, discover DiscoverFunc) Model {
	return Model{ctx: ctx, source: source, discover: discover}
}

// tickMsg drives the periodic poll of the bridge's stats.
type tickMsg time.Time

// discoveryMsg carries the result of one background discovery pass.
type discoveryMsg struct {
	results []discovery.Result
	err     error
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func discoverCmd(ctx context.Context, discover DiscoverFunc) tea.Cmd {
	return tea.Tick(10*time.Second, func(time.Time) tea.Msg {
		results, err := discover(ctx)
		return discoveryMsg{results: results, err: err}
	})
}

func (m Model) Init() tea.Cmd {
	if m.discover == nil {
		return tickCmd()
	}
	return tea.Batch(tickCmd(), discoverCmd(m.ctx, m.discover))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.rows = m.source.Rows()
		sort.Slice(m.rows, func(i, j int) bool { return m.rows[i].MAC < m.rows[j].MAC })
		return m, tickCmd()
	case discoveryMsg:
		m.discovery = msg.results
		m.discErr = msg.err
		return m, discoverCmd(m.ctx, m.discover)
	}
	return m, nil
}

func (m Model) View() string {
	var s string
	s += titleStyle.Render("WiZ Bridge") + "\n\n"

	if len(m.rows) == 0 {
		s += helpStyle.Render("waiting for bulbs...") + "\n"
	} else {
		s += headerStyle.Render(fmt.Sprintf("%-18s %-14s %-16s %-8s %6s %6s %6s", "MAC", "NAME", "LAST SENT", "IP", "QUEUE", "SENT", "DROP")) + "\n"
		for _, r := range m.rows {
			line := fmt.Sprintf("%-18s %-14s %-16s %-8s %6d %6d %6d",
				r.MAC, truncate(r.Name, 14), r.LastSent.String(), r.IP, r.QueueLen, r.Stats.Sent, r.Stats.Dropped)
			if r.Stats.Dropped > 0 {
				s += droppedWarn.Render(line) + "\n"
			} else {
				s += rowStyle.Render(line) + "\n"
			}
		}
	}

	s += "\n" + headerStyle.Render("discovered") + "\n"
	switch {
	case m.discover == nil:
		s += helpStyle.Render("discovery disabled") + "\n"
	case m.discErr != nil:
		s += droppedWarn.Render(fmt.Sprintf("scan failed: %v", m.discErr)) + "\n"
	case len(m.discovery) == 0:
		s += helpStyle.Render("no bulbs found yet") + "\n"
	default:
		for _, d := range m.discovery {
			s += rowStyle.Render(fmt.Sprintf("%-18s %-16s state=%-5v dim=%d", d.MAC, d.IP, d.State, d.Dimming)) + "\n"
		}
	}

	s += "\n" + helpStyle.Render("q: quit")
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Run blocks running the dashboard until the program quits or ctx is
// cancelled. discover may be nil to disable the discovery pane.
func Run(ctx context.Context, source Source, discover DiscoverFunc) error {
	p := tea.NewProgram(NewModel(ctx, source, discover))
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}
