package scenes

import (
	"fmt"
	"strings"
	"time"

	"socwatch/internal/engine"
	"socwatch/internal/tui/api"
	"socwatch/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
)

// AlertsScene displays the live alert list with ack/close actions.
type AlertsScene struct {
	client     *api.Client
	alerts     []engine.Alert
	err        string
	width      int
	height     int
	cursor     int
	offset     int
	maxRows    int
	loading    bool
	lastUpdate time.Time
}

type alertsMsg struct {
	alerts []engine.Alert
	err    string
}

type alertActionMsg struct {
	err string
}

// NewAlertsScene creates the alerts scene.
func NewAlertsScene(client *api.Client) *AlertsScene {
	return &AlertsScene{
		client:  client,
		loading: true,
		maxRows: 10,
	}
}

// Init fetches the initial alert list.
func (a *AlertsScene) Init() tea.Cmd {
	return a.fetchAlerts()
}

func (a *AlertsScene) fetchAlerts() tea.Cmd {
	return func() tea.Msg {
		alerts, err := a.client.GetAlerts()
		if err != nil {
			return alertsMsg{err: err.Error()}
		}
		return alertsMsg{alerts: alerts}
	}
}

func (a *AlertsScene) postAction(alertID string, action engine.ActionType) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.PostAlertAction(alertID, action, "console"); err != nil {
			return alertActionMsg{err: err.Error()}
		}
		return alertActionMsg{}
	}
}

// TickCmd schedules the next refresh.
func (a *AlertsScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "alerts", Time: t}
	})
}

// Update handles messages for the alerts scene.
func (a *AlertsScene) Update(msg tea.Msg) (*AlertsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.maxRows = max(5, a.height-12)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if a.cursor > 0 {
				a.cursor--
				if a.cursor < a.offset {
					a.offset = a.cursor
				}
			}
		case "down", "j":
			if a.cursor < len(a.alerts)-1 {
				a.cursor++
				if a.cursor >= a.offset+a.maxRows {
					a.offset = a.cursor - a.maxRows + 1
				}
			}
		case "a":
			if alert := a.selected(); alert != nil {
				return a, a.postAction(alert.ID, engine.ActionAck)
			}
		case "c":
			if alert := a.selected(); alert != nil {
				return a, a.postAction(alert.ID, engine.ActionClose)
			}
		case "r":
			a.loading = true
			return a, a.fetchAlerts()
		}
		return a, nil

	case alertsMsg:
		a.loading = false
		a.alerts = msg.alerts
		a.err = msg.err
		a.lastUpdate = time.Now()
		if a.cursor >= len(a.alerts) {
			a.cursor = max(0, len(a.alerts)-1)
		}
		return a, nil

	case alertActionMsg:
		if msg.err != "" {
			a.err = msg.err
			return a, nil
		}
		return a, a.fetchAlerts()

	case TickMsg:
		if msg.Scene == "alerts" {
			return a, a.fetchAlerts()
		}
	}
	return a, nil
}

// selected returns the alert under the cursor. Rows display newest first,
// so the cursor indexes the list from the back.
func (a *AlertsScene) selected() *engine.Alert {
	if a.cursor < 0 || a.cursor >= len(a.alerts) {
		return nil
	}
	return &a.alerts[len(a.alerts)-1-a.cursor]
}

// View renders the alert table, newest first.
func (a *AlertsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Alerts"))
	b.WriteString("\n\n")

	if a.loading {
		b.WriteString(styles.Muted.Render("Loading..."))
		return b.String()
	}
	if a.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", a.err)))
		b.WriteString("\n")
	}
	if len(a.alerts) == 0 {
		b.WriteString(styles.Muted.Render("  No alerts."))
		return b.String()
	}

	header := fmt.Sprintf("  %-8s %-9s %-36s %-16s %-8s %s",
		"TIME", "SEVERITY", "TYPE", "SOURCE IP", "USER", "STATUS")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	end := min(a.offset+a.maxRows, len(a.alerts))
	for i := a.offset; i < end; i++ {
		alert := a.alerts[len(a.alerts)-1-i] // newest first
		row := fmt.Sprintf("  %-8s %-9s %-36s %-16s %-8s %s",
			time.UnixMilli(alert.TS).Format("15:04:05"),
			alert.Severity,
			truncate(alert.Type, 36),
			alert.IP,
			truncate(alert.User, 8),
			alert.Status,
		)
		if i == a.cursor {
			b.WriteString(styles.TableRowSelected.Render(row))
		} else {
			b.WriteString(styles.ForSeverity(string(alert.Severity)).Render(row))
		}
		b.WriteString("\n")
	}

	if sel := a.selected(); sel != nil {
		b.WriteString("\n")
		b.WriteString(styles.Subtitle.Render("  Explanation"))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  " + wrap(sel.Explanation, max(40, a.width-4))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Help.Render("  [a] Acknowledge  [c] Close  [r] Refresh"))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func wrap(s string, width int) string {
	words := strings.Fields(s)
	var b strings.Builder
	line := 0
	for i, w := range words {
		if line+len(w)+1 > width && line > 0 {
			b.WriteString("\n  ")
			line = 0
		} else if i > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(w)
		line += len(w)
	}
	return b.String()
}
