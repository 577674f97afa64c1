package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Severity levels for alerts and investigations.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the position of the severity in the total order
// LOW < MEDIUM < HIGH < CRITICAL. Unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Alert type labels emitted by the detectors.
const (
	AlertRecon          = "Reconnaissance Suspected"
	AlertPasswordGuess  = "Password Guessing Suspected"
	AlertBruteForce     = "Brute Force Suspected"
	AlertAnomalousLogin = "Anomalous Login Source"
	AlertElevatedReads  = "Elevated Sensitive File Reads"
	AlertSensitiveFiles = "Sensitive File Access Pattern"
	AlertSuspTransfer   = "Suspicious Transfer Volume"
	AlertExfil          = "Possible Data Exfiltration"
	AlertCompromise     = "Confirmed Account Compromise (Multi-stage)"
)

// AlertStatus represents the lifecycle status of an alert.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "NEW"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusClosed       AlertStatus = "CLOSED"
)

// Alert is a single detector firing. Created exactly once; immutable except
// for the action log and the convenience status fields appended through
// ApplyAlertAction.
type Alert struct {
	ID          string      `json:"id"`
	TS          int64       `json:"ts"`
	Type        string      `json:"type"`
	Severity    Severity    `json:"severity"`
	IP          string      `json:"ip"`
	User        string      `json:"user,omitempty"`
	Explanation string      `json:"explanation"`
	Status      AlertStatus `json:"status"`
	AckTS       int64       `json:"ackTs,omitempty"`
	ClosedTS    int64       `json:"closedTs,omitempty"`
	AssignedTo  string      `json:"assignedTo,omitempty"`

	Actions []ActionRecord `json:"actions,omitempty"`
}

// alertID builds the deterministic alert identifier from the triggering
// timestamp, label and attacker IP.
func alertID(ts int64, alertType, ip string) string {
	return fmt.Sprintf("A-%d-%s-%s", ts, alertType, ip)
}

func newAlert(ts int64, ip, user, alertType string, severity Severity, explanation string) *Alert {
	return &Alert{
		ID:          alertID(ts, alertType, ip),
		TS:          ts,
		Type:        alertType,
		Severity:    severity,
		IP:          ip,
		User:        user,
		Explanation: explanation,
		Status:      AlertStatusNew,
	}
}

// ActionType is an analyst action applied to an alert or investigation.
type ActionType string

const (
	ActionAck                ActionType = "ACK"
	ActionAssign             ActionType = "ASSIGN"
	ActionClose              ActionType = "CLOSE"
	ActionReopen             ActionType = "REOPEN"
	ActionBlockIP            ActionType = "BLOCK_IP"
	ActionDisableUser        ActionType = "DISABLE_USER"
	ActionForcePasswordReset ActionType = "FORCE_PASSWORD_RESET"
	ActionRevokeSessions     ActionType = "REVOKE_SESSIONS"
	ActionContain            ActionType = "CONTAIN"
)

// IsContainment reports whether the action is containment-class.
func (a ActionType) IsContainment() bool {
	switch a {
	case ActionBlockIP, ActionDisableUser, ActionForcePasswordReset,
		ActionRevokeSessions, ActionContain:
		return true
	}
	return false
}

// ActionRecord is one timestamped entry in an action log.
type ActionRecord struct {
	ID   uuid.UUID  `json:"id"`
	TS   int64      `json:"ts"`
	Type ActionType `json:"type"`
	By   string     `json:"by,omitempty"`
	Note string     `json:"note,omitempty"`
}
