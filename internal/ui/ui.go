package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

const feedBuffer = 16

// Feed is a monitor reporter that forwards tick figures to the dashboard.
// Sends never block; updates are dropped while the dashboard is behind.
type Feed struct {
	readings chan model.Reading
	reclaims chan reclaimRun
}

func NewFeed() *Feed {
	return &Feed{
		readings: make(chan model.Reading, feedBuffer),
		reclaims: make(chan reclaimRun, feedBuffer),
	}
}

func (f *Feed) Report(r model.Reading) {
	select {
	case f.readings <- r:
	default:
	}
}

func (f *Feed) ReportReclaim(at time.Time, results []model.TerminationResult) {
	select {
	case f.reclaims <- reclaimRun{at: at, results: results}:
	default:
	}
}

// Model renders the latest reading and the last reclamation run.
type Model struct {
	thresholds  config.Thresholds
	feed        *Feed
	latest      model.Reading
	haveReading bool
	lastReclaim reclaimRun
	width       int
	height      int
}

func New(feed *Feed, thresholds config.Thresholds) *Model {
	return &Model{
		thresholds: thresholds,
		feed:       feed,
		latest:     model.Zero(),
		width:      120,
		height:     40,
	}
}

type tickMsg struct{}

// reclaimRun is one reclamation batch as delivered by the Feed.
type reclaimRun struct {
	at      time.Time
	results []model.TerminationResult
}

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.drain()
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) drain() {
	for {
		select {
		case r := <-m.feed.readings:
			m.latest, m.haveReading = r, true
		case rc := <-m.feed.reclaims:
			m.lastReclaim = rc
		default:
			return
		}
	}
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	r := m.latest
	header := titleStyle.Render("Resource Guard") + "  "
	if !m.haveReading {
		header += subtleStyle.Render("waiting for first tick…")
	} else {
		header += subtleStyle.Render(r.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006"))
	}
	if r.Stale {
		header += "  " + staleStyle.Render("STALE: "+truncate(r.Error, 60))
	}

	memBody := gaugeBar(r.Memory, 28)
	if r.Memory > m.thresholds.MemoryTriggerPct {
		memBody += "  " + alertStyle.Render(fmt.Sprintf("> %.0f%% trigger", m.thresholds.MemoryTriggerPct))
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("CPU", gaugeBar(r.CPU, 28)),
		card("Memory", memBody),
	)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Disk", gaugeBar(r.Disk, 28)),
		card("Predicted disk", gaugeBar(r.PredictedDisk, 28)),
	)

	title := "Last reclamation"
	if !m.lastReclaim.at.IsZero() {
		title += " " + m.lastReclaim.at.Format("15:04:05")
	}
	reclaim := card(title, renderTable(m.lastReclaim.results, 10))

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, reclaim)
}

// Helpers
func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func renderTable(rows []model.TerminationResult, limit int) string {
	if len(rows) == 0 {
		return subtleStyle.Render("none")
	}
	n := min(limit, len(rows))
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-7s %-6s %-9s %-10s %s\n", "cmd", "pid", "mem", "rss", "outcome", "reason")
	for _, r := range rows[:n] {
		fmt.Fprintf(&b, "%-18s %-7d %5.1f%% %-9s %-10s %s\n",
			truncate(r.Name, 18), r.PID, r.MemoryShare,
			datasize.ByteSize(r.RSS).HumanReadable(), r.Outcome, r.Reason)
	}
	if len(rows) > n {
		fmt.Fprintf(&b, "… %d more", len(rows)-n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, feed *Feed, thresholds config.Thresholds) error {
	prog := tea.NewProgram(New(feed, thresholds), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
