// Package schema defines the canonical telemetry event schema for socwatch.
// All generated or ingested events are normalized to this structure before
// the detection engine sees them.
package schema

import "time"

// EventType identifies the kind of telemetry an event carries.
type EventType string

const (
	EventAuthFail          EventType = "auth_fail"
	EventAuthSuccess       EventType = "auth_success"
	EventNetConnAttempt    EventType = "net_conn_attempt"
	EventFileReadSensitive EventType = "file_read_sensitive"
	EventNetBytesOut       EventType = "net_bytes_out"
	EventPolicyBlock       EventType = "policy_block"
	EventPolicyChange      EventType = "policy_change"
)

// IsValid checks if the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventAuthFail, EventAuthSuccess, EventNetConnAttempt,
		EventFileReadSensitive, EventNetBytesOut, EventPolicyBlock, EventPolicyChange:
		return true
	}
	return false
}

// Event is a single telemetry record. Events are immutable once created;
// the detection engine keeps its own bounded copy for trend and history use.
type Event struct {
	ID   int64     `json:"id" validate:"required,min=1"`
	TS   int64     `json:"ts" validate:"required,min=1"` // epoch milliseconds
	Type EventType `json:"type" validate:"required,event_type"`
	IP   string    `json:"ip" validate:"required,ip"`
	User string    `json:"user,omitempty" validate:"max=128"`
	Meta Meta      `json:"meta"`
}

// Meta carries the per-type optional payload. Only the fields relevant to
// the event's type are populated; absent fields read as zero values and
// detectors treat them as "feature absent".
type Meta struct {
	Attack  bool   `json:"attack,omitempty"` // simulated-attack traffic marker
	Home    bool   `json:"home,omitempty"`   // traffic from the user's stable home IP
	Port    int    `json:"port,omitempty" validate:"min=0,max=65535"`
	Bytes   int64  `json:"bytes,omitempty" validate:"min=0"`
	Service string `json:"service,omitempty" validate:"max=64"`
	File    string `json:"file,omitempty" validate:"max=1024"`
	Reason  string `json:"reason,omitempty" validate:"max=128"`
	Action  string `json:"action,omitempty" validate:"max=64"`
}

// Time converts the event timestamp to a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.TS)
}
