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

// InvestigationsScene displays attacker cases with triage and containment
// actions.
type InvestigationsScene struct {
	client     *api.Client
	cases      []engine.Investigation
	err        string
	width      int
	height     int
	cursor     int
	offset     int
	maxRows    int
	loading    bool
	lastUpdate time.Time
}

type investigationsMsg struct {
	cases []engine.Investigation
	err   string
}

type caseActionMsg struct {
	err string
}

// NewInvestigationsScene creates the investigations scene.
func NewInvestigationsScene(client *api.Client) *InvestigationsScene {
	return &InvestigationsScene{
		client:  client,
		loading: true,
		maxRows: 10,
	}
}

// Init fetches the initial case list.
func (s *InvestigationsScene) Init() tea.Cmd {
	return s.fetchCases()
}

func (s *InvestigationsScene) fetchCases() tea.Cmd {
	return func() tea.Msg {
		cases, err := s.client.GetInvestigations()
		if err != nil {
			return investigationsMsg{err: err.Error()}
		}
		return investigationsMsg{cases: cases}
	}
}

func (s *InvestigationsScene) postAction(inv *engine.Investigation, action engine.ActionType) tea.Cmd {
	// User-scoped containment targets the first known victim.
	user := ""
	if action == engine.ActionDisableUser || action == engine.ActionForcePasswordReset {
		victims := inv.Victims.Values()
		if len(victims) == 0 {
			return nil
		}
		user = victims[0]
	}
	id := inv.ID
	return func() tea.Msg {
		if err := s.client.PostInvestigationAction(id, action, "console", user); err != nil {
			return caseActionMsg{err: err.Error()}
		}
		return caseActionMsg{}
	}
}

// TickCmd schedules the next refresh.
func (s *InvestigationsScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "investigations", Time: t}
	})
}

// Update handles messages for the investigations scene.
func (s *InvestigationsScene) Update(msg tea.Msg) (*InvestigationsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.maxRows = max(5, s.height-14)
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
				if s.cursor < s.offset {
					s.offset = s.cursor
				}
			}
		case "down", "j":
			if s.cursor < len(s.cases)-1 {
				s.cursor++
				if s.cursor >= s.offset+s.maxRows {
					s.offset = s.cursor - s.maxRows + 1
				}
			}
		case "a":
			if inv := s.selected(); inv != nil {
				return s, s.postAction(inv, engine.ActionAck)
			}
		case "b":
			if inv := s.selected(); inv != nil {
				return s, s.postAction(inv, engine.ActionBlockIP)
			}
		case "d":
			if inv := s.selected(); inv != nil {
				return s, s.postAction(inv, engine.ActionDisableUser)
			}
		case "c":
			if inv := s.selected(); inv != nil {
				return s, s.postAction(inv, engine.ActionClose)
			}
		case "o":
			if inv := s.selected(); inv != nil {
				return s, s.postAction(inv, engine.ActionReopen)
			}
		case "r":
			s.loading = true
			return s, s.fetchCases()
		}
		return s, nil

	case investigationsMsg:
		s.loading = false
		s.cases = msg.cases
		s.err = msg.err
		s.lastUpdate = time.Now()
		if s.cursor >= len(s.cases) {
			s.cursor = max(0, len(s.cases)-1)
		}
		return s, nil

	case caseActionMsg:
		if msg.err != "" {
			s.err = msg.err
			return s, nil
		}
		return s, s.fetchCases()

	case TickMsg:
		if msg.Scene == "investigations" {
			return s, s.fetchCases()
		}
	}
	return s, nil
}

// selected returns the case under the cursor; rows display newest first.
func (s *InvestigationsScene) selected() *engine.Investigation {
	if s.cursor < 0 || s.cursor >= len(s.cases) {
		return nil
	}
	return &s.cases[len(s.cases)-1-s.cursor]
}

// View renders the case table.
func (s *InvestigationsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Investigations"))
	b.WriteString("\n\n")

	if s.loading {
		b.WriteString(styles.Muted.Render("Loading..."))
		return b.String()
	}
	if s.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)))
		b.WriteString("\n")
	}
	if len(s.cases) == 0 {
		b.WriteString(styles.Muted.Render("  No open investigations."))
		return b.String()
	}

	header := fmt.Sprintf("  %-8s %-9s %-16s %-11s %-7s %s",
		"SEEN", "SEVERITY", "ATTACKER IP", "STATUS", "ALERTS", "VICTIMS")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	end := min(s.offset+s.maxRows, len(s.cases))
	for i := s.offset; i < end; i++ {
		inv := s.cases[len(s.cases)-1-i]
		row := fmt.Sprintf("  %-8s %-9s %-16s %-11s %-7d %s",
			time.UnixMilli(inv.LastSeenTS).Format("15:04:05"),
			inv.Severity,
			inv.Entity,
			inv.Status,
			inv.Count,
			truncate(strings.Join(inv.Victims.Values(), ","), 24),
		)
		if i == s.cursor {
			b.WriteString(styles.TableRowSelected.Render(row))
		} else {
			b.WriteString(styles.ForSeverity(string(inv.Severity)).Render(row))
		}
		b.WriteString("\n")
	}

	if inv := s.selected(); inv != nil {
		b.WriteString("\n")
		b.WriteString(styles.Subtitle.Render("  " + inv.Title))
		b.WriteString("\n")
		var types []string
		for typ, n := range inv.TypeCounts {
			types = append(types, fmt.Sprintf("%s ×%d", typ, n))
		}
		b.WriteString(styles.Muted.Render("  " + wrap(strings.Join(types, ", "), max(40, s.width-4))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Help.Render(
		"  [a] Ack  [b] Block IP  [d] Disable user  [c] Close  [o] Reopen  [r] Refresh"))
	return b.String()
}
