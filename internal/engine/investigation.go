package engine

import "fmt"

// CaseStatus is the lifecycle state of an investigation. It is derived
// from the action log on read; an explicit override takes precedence.
type CaseStatus string

const (
	CaseOpen       CaseStatus = "OPEN"
	CaseMonitoring CaseStatus = "MONITORING"
	CaseContained  CaseStatus = "CONTAINED"
	CaseClosed     CaseStatus = "CLOSED"
	CaseReopened   CaseStatus = "REOPENED"
)

// Investigation is an attacker-IP-centric aggregate of all alerts
// attributed to that IP. Exactly one exists per attacker IP; it is
// mutated, never replaced, on every subsequent alert.
type Investigation struct {
	ID         string         `json:"id"`
	CreatedTS  int64          `json:"createdTs"`
	LastSeenTS int64          `json:"lastSeenTs"`
	Title      string         `json:"title"`
	Severity   Severity       `json:"severity"`
	Entity     string         `json:"entity"` // attacker IP
	Status     CaseStatus     `json:"status"`
	Count      int            `json:"count"`
	Victims    StringSet      `json:"victims"`
	TypeCounts map[string]int `json:"typeCounts"`

	Actions    []ActionRecord `json:"actions,omitempty"`
	AckTS      int64          `json:"ackTs,omitempty"`
	ClosedTS   int64          `json:"closedTs,omitempty"`
	ReopenedTS int64          `json:"reopenedTs,omitempty"`
	AssignedTo string         `json:"assignedTo,omitempty"`

	// StatusOverride, when set, wins over derivation.
	StatusOverride CaseStatus `json:"statusOverride,omitempty"`
}

// DerivedStatus folds the action log once into a lifecycle state.
func (inv *Investigation) DerivedStatus() CaseStatus {
	if inv.StatusOverride != "" {
		return inv.StatusOverride
	}

	var sawClose, sawContain, sawAck bool
	for _, a := range inv.Actions {
		switch {
		case a.Type == ActionReopen:
			// REOPEN from any prior state re-enters the chain.
			return CaseReopened
		case a.Type == ActionClose:
			sawClose = true
		case a.Type.IsContainment():
			sawContain = true
		case a.Type == ActionAck || a.Type == ActionAssign:
			sawAck = true
		}
	}

	switch {
	case sawClose || inv.ClosedTS != 0:
		return CaseClosed
	case sawContain:
		return CaseContained
	case sawAck:
		return CaseMonitoring
	}
	return CaseOpen
}

// upsertInvestigation folds an alert into the attacker's case, creating it
// on first sight. Severity only ever escalates.
func (e *Engine) upsertInvestigation(attackerIP string, alert *Alert) *Investigation {
	inv := e.invByIP[attackerIP]
	if inv == nil {
		inv = &Investigation{
			ID:         fmt.Sprintf("I-%s", attackerIP),
			CreatedTS:  alert.TS,
			LastSeenTS: alert.TS,
			Title:      fmt.Sprintf("Suspicious activity from %s", attackerIP),
			Severity:   alert.Severity,
			Entity:     attackerIP,
			Status:     CaseOpen,
			Count:      1,
			Victims:    NewStringSet(alert.User),
			TypeCounts: map[string]int{alert.Type: 1},
		}
		e.invByIP[attackerIP] = inv
		e.investigations = append(e.investigations, inv)
		return inv
	}

	inv.LastSeenTS = alert.TS
	inv.Count++
	inv.Victims.Add(alert.User)
	inv.TypeCounts[alert.Type]++

	if alert.Severity.Rank() > inv.Severity.Rank() {
		inv.Severity = alert.Severity
	}
	return inv
}
