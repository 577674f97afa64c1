// Package scenes provides the console views: overview, alerts and
// investigations.
package scenes

import (
	"fmt"
	"strings"
	"time"

	"socwatch/internal/engine"
	"socwatch/internal/tui/api"
	"socwatch/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TickMsg is sent on each scene refresh tick.
type TickMsg struct {
	Scene string
	Time  time.Time
}

// OverviewScene displays engine counters and the threat trend chart.
type OverviewScene struct {
	client     *api.Client
	stats      *api.Stats
	trends     *engine.TrendReport
	healthy    bool
	err        error
	width      int
	height     int
	loading    bool
	lastUpdate time.Time
}

type overviewMsg struct {
	stats   *api.Stats
	trends  *engine.TrendReport
	healthy bool
	err     error
}

// NewOverviewScene creates the overview scene.
func NewOverviewScene(client *api.Client) *OverviewScene {
	return &OverviewScene{
		client:  client,
		loading: true,
	}
}

// Init fetches the initial data.
func (o *OverviewScene) Init() tea.Cmd {
	return o.fetch()
}

func (o *OverviewScene) fetch() tea.Cmd {
	return func() tea.Msg {
		var msg overviewMsg

		health, err := o.client.GetHealth()
		if err != nil {
			msg.err = err
			return msg
		}
		msg.healthy = health.Status == "healthy"

		if msg.stats, err = o.client.GetStats(); err != nil {
			msg.err = err
			return msg
		}
		msg.trends, err = o.client.GetTrends(12)
		msg.err = err
		return msg
	}
}

// TickCmd schedules the next refresh. The parent model forwards ticks only
// while this scene is active.
func (o *OverviewScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "overview", Time: t}
	})
}

// Update handles messages for the overview.
func (o *OverviewScene) Update(msg tea.Msg) (*OverviewScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height
		return o, nil

	case overviewMsg:
		o.loading = false
		o.stats = msg.stats
		o.trends = msg.trends
		o.healthy = msg.healthy
		o.err = msg.err
		o.lastUpdate = time.Now()
		return o, nil

	case TickMsg:
		if msg.Scene == "overview" {
			return o, o.fetch()
		}
	}
	return o, nil
}

// View renders the overview.
func (o *OverviewScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Security Overview"))
	b.WriteString("\n\n")

	if o.loading {
		b.WriteString(styles.Muted.Render("Loading..."))
		return b.String()
	}
	if o.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %v", o.err)))
		return b.String()
	}

	status := styles.StatusError.Render("● OFFLINE")
	if o.healthy {
		status = styles.StatusOK.Render("● ONLINE")
	}
	b.WriteString(fmt.Sprintf("  Server: %s\n\n", status))

	if o.stats != nil {
		cards := []string{
			metricCard("Events", fmt.Sprintf("%d", o.stats.Events)),
			metricCard("Alerts", fmt.Sprintf("%d", o.stats.Alerts)),
			metricCard("Investigations", fmt.Sprintf("%d", o.stats.Investigations)),
			metricCard("Queue", fmt.Sprintf("%d/%d", o.stats.Queue.Depth, o.stats.Queue.Capacity)),
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
		b.WriteString("\n\n")

		b.WriteString(styles.Subtitle.Render("  Alerts by severity"))
		b.WriteString("\n")
		for _, sev := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"} {
			n := o.stats.AlertsSeverity[sev]
			label := styles.ForSeverity(sev).Render(fmt.Sprintf("%-8s", sev))
			b.WriteString(fmt.Sprintf("  %s %d\n", label, n))
		}
		b.WriteString("\n")
	}

	if o.trends != nil {
		b.WriteString(styles.Subtitle.Render("  Threat activity (events/min)"))
		b.WriteString("\n")
		b.WriteString(renderTrendBars(o.trends))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(fmt.Sprintf(
			"  threat pressure %.2f   baseline mean %.1f/min",
			o.trends.ThreatPressure, o.trends.BaselineMean)))
		b.WriteString("\n")
	}

	if !o.lastUpdate.IsZero() {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(
			fmt.Sprintf("  Last updated: %s", o.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)
	return styles.MetricCard.Render(content)
}

var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// renderTrendBars draws one bar per minute bin, threat over baseline.
func renderTrendBars(report *engine.TrendReport) string {
	maxCount := 1
	for _, p := range report.Points {
		if p.Threat > maxCount {
			maxCount = p.Threat
		}
		if p.Baseline > maxCount {
			maxCount = p.Baseline
		}
	}

	var threat, baseline strings.Builder
	for _, p := range report.Points {
		threat.WriteRune(barGlyph(p.Threat, maxCount))
		baseline.WriteRune(barGlyph(p.Baseline, maxCount))
	}

	return fmt.Sprintf("  %s %s\n  %s %s",
		styles.StatusError.Render(threat.String()),
		styles.Muted.Render("threat"),
		styles.StatusOK.Render(baseline.String()),
		styles.Muted.Render("baseline"),
	)
}

func barGlyph(count, max int) rune {
	if count <= 0 {
		return barGlyphs[0]
	}
	idx := 1 + count*(len(barGlyphs)-2)/max
	if idx >= len(barGlyphs) {
		idx = len(barGlyphs) - 1
	}
	return barGlyphs[idx]
}
