package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an alert or investigation lookup misses.
var ErrNotFound = errors.New("not found")

// Action application is the only external mutation permitted on engine
// state besides ingestion. Actions append to the target's log and update
// convenience fields; they never touch rolling-window state and never
// re-enter detection logic.

var alertActions = map[ActionType]bool{
	ActionAck:    true,
	ActionAssign: true,
	ActionClose:  true,
}

var investigationActions = map[ActionType]bool{
	ActionAck:                true,
	ActionAssign:             true,
	ActionClose:              true,
	ActionReopen:             true,
	ActionBlockIP:            true,
	ActionDisableUser:        true,
	ActionForcePasswordReset: true,
	ActionRevokeSessions:     true,
	ActionContain:            true,
}

// ApplyAlertAction appends an analyst action to an alert's log and updates
// its convenience status fields.
func (e *Engine) ApplyAlertAction(alertID string, action ActionType, by, note string, ts int64) error {
	if !alertActions[action] {
		return fmt.Errorf("action %q not valid for alerts", action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.alertsByID[alertID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}

	alert.Actions = append(alert.Actions, ActionRecord{
		ID:   uuid.New(),
		TS:   ts,
		Type: action,
		By:   by,
		Note: note,
	})

	switch action {
	case ActionAck:
		alert.AckTS = ts
		if alert.Status != AlertStatusClosed {
			alert.Status = AlertStatusAcknowledged
		}
	case ActionAssign:
		alert.AssignedTo = by
		if alert.Status == AlertStatusNew {
			alert.Status = AlertStatusAcknowledged
		}
	case ActionClose:
		alert.ClosedTS = ts
		alert.Status = AlertStatusClosed
	}

	return nil
}

// ApplyInvestigationAction appends an analyst action to an investigation's
// log, addressed by investigation ID or by attacker IP.
func (e *Engine) ApplyInvestigationAction(idOrIP string, action ActionType, by, note string, ts int64) error {
	if !investigationActions[action] {
		return fmt.Errorf("action %q not valid for investigations", action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inv := e.invByIP[idOrIP]
	if inv == nil {
		for _, candidate := range e.investigations {
			if candidate.ID == idOrIP {
				inv = candidate
				break
			}
		}
	}
	if inv == nil {
		return fmt.Errorf("investigation %s: %w", idOrIP, ErrNotFound)
	}

	inv.Actions = append(inv.Actions, ActionRecord{
		ID:   uuid.New(),
		TS:   ts,
		Type: action,
		By:   by,
		Note: note,
	})

	switch action {
	case ActionAck:
		inv.AckTS = ts
	case ActionAssign:
		inv.AssignedTo = by
	case ActionClose:
		inv.ClosedTS = ts
	case ActionReopen:
		inv.ReopenedTS = ts
		inv.ClosedTS = 0
	}

	inv.Status = inv.DerivedStatus()
	return nil
}

// SetInvestigationStatus sets or clears (empty status) the explicit status
// override on an investigation.
func (e *Engine) SetInvestigationStatus(idOrIP string, status CaseStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inv := e.invByIP[idOrIP]
	if inv == nil {
		for _, candidate := range e.investigations {
			if candidate.ID == idOrIP {
				inv = candidate
				break
			}
		}
	}
	if inv == nil {
		return fmt.Errorf("investigation %s: %w", idOrIP, ErrNotFound)
	}

	inv.StatusOverride = status
	inv.Status = inv.DerivedStatus()
	return nil
}
