// Package engine implements the socwatch detection-and-correlation core:
// rolling-window threshold detectors, alert dedup, multi-stage attack
// correlation and per-attacker investigation aggregation. All state is
// private to an Engine instance; windowing is driven purely by event
// timestamps, never by wall-clock timers.
package engine

import (
	"log/slog"
	"sync"

	"socwatch/internal/config"
	"socwatch/internal/schema"
)

// Engine processes event batches and maintains all rolling detection state.
// Ingestion is synchronous; the internal mutex serializes access so the
// engine can be embedded in a concurrent host.
type Engine struct {
	mu       sync.Mutex
	caps     config.EngineConfig
	settings *config.SettingsStore

	// Output state.
	events         []*schema.Event
	alerts         []*Alert
	alertsByID     map[string]*Alert
	investigations []*Investigation
	invByIP        map[string]*Investigation

	// Rolling windows and memory.
	authFails      *tsWindow
	sensitiveReads *tsWindow
	exfil          *byteWindow
	exfilBurst     *byteWindow
	recon          *portWindow
	cooldowns      *cooldownGate
	stages         *stageTracker
}

// New creates an engine with the given retention caps reading live
// detection settings from store.
func New(caps config.EngineConfig, store *config.SettingsStore) *Engine {
	return &Engine{
		caps:           caps,
		settings:       store,
		alertsByID:     make(map[string]*Alert),
		invByIP:        make(map[string]*Investigation),
		authFails:      newTSWindow(),
		sensitiveReads: newTSWindow(),
		exfil:          newByteWindow(),
		exfilBurst:     newByteWindow(),
		recon:          newPortWindow(),
		cooldowns:      newCooldownGate(),
		stages:         newStageTracker(),
	}
}

// Ingest processes one batch of events to completion. Events must arrive
// in non-decreasing timestamp order relative to all previously ingested
// events; violating this silently degrades window correctness rather than
// failing loudly. Detectors run in a fixed order so stage marks from an
// earlier detector are visible to correlation checks triggered later in
// the same batch.
func (e *Engine) Ingest(events []*schema.Event) {
	if len(events) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = append(e.events, events...)

	e.detectRecon(events)
	e.detectBruteForce(events)
	e.detectAnomalousLogin(events)
	e.detectSensitiveFiles(events)
	e.detectExfil(events)

	e.applyRetention()
}

// emit records a detector firing: append the alert, index it and fold it
// into the attacker's investigation. Cooldown gating happens before emit.
func (e *Engine) emit(alert *Alert) {
	e.alerts = append(e.alerts, alert)
	e.alertsByID[alert.ID] = alert
	e.upsertInvestigation(alert.IP, alert)

	slog.Info("alert fired",
		"type", alert.Type,
		"severity", alert.Severity,
		"ip", alert.IP,
		"user", alert.User,
	)
}

// applyRetention trims the three bounded buffers: raw events, alerts and
// investigations. A trimmed investigation is removed from the by-IP index
// too, so the list and the index stay in lockstep.
func (e *Engine) applyRetention() {
	if len(e.events) > e.caps.EventCap {
		drop := len(e.events) - e.caps.EventKeep
		e.events = append([]*schema.Event(nil), e.events[drop:]...)
	}

	if len(e.alerts) > e.caps.AlertCap {
		drop := len(e.alerts) - e.caps.AlertKeep
		for _, a := range e.alerts[:drop] {
			delete(e.alertsByID, a.ID)
		}
		e.alerts = append([]*Alert(nil), e.alerts[drop:]...)
	}

	if len(e.investigations) > e.caps.InvestigationCap {
		drop := len(e.investigations) - e.caps.InvestigationKeep
		for _, inv := range e.investigations[:drop] {
			delete(e.invByIP, inv.Entity)
		}
		e.investigations = append([]*Investigation(nil), e.investigations[drop:]...)
	}
}

// Snapshot is a read-only copy of the engine's output state for the
// rendering layer. Collections are copied so the caller cannot mutate
// engine-owned state; investigation statuses are derived at copy time.
type Snapshot struct {
	Events         []schema.Event  `json:"events"`
	Alerts         []Alert         `json:"alerts"`
	Investigations []Investigation `json:"investigations"`
}

// Snapshot returns a copy of events, alerts and investigations.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Events:         make([]schema.Event, len(e.events)),
		Alerts:         make([]Alert, len(e.alerts)),
		Investigations: make([]Investigation, len(e.investigations)),
	}

	for i, ev := range e.events {
		snap.Events[i] = *ev
	}
	for i, a := range e.alerts {
		snap.Alerts[i] = copyAlert(a)
	}
	for i, inv := range e.investigations {
		snap.Investigations[i] = copyInvestigation(inv)
	}
	return snap
}

func copyAlert(a *Alert) Alert {
	out := *a
	out.Actions = append([]ActionRecord(nil), a.Actions...)
	return out
}

func copyInvestigation(inv *Investigation) Investigation {
	out := *inv
	out.Victims = inv.Victims.Clone()
	out.TypeCounts = make(map[string]int, len(inv.TypeCounts))
	for k, v := range inv.TypeCounts {
		out.TypeCounts[k] = v
	}
	out.Actions = append([]ActionRecord(nil), inv.Actions...)
	out.Status = inv.DerivedStatus()
	return out
}

// Reset clears all engine state, including rolling windows and cooldowns.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = nil
	e.alerts = nil
	e.investigations = nil
	e.alertsByID = make(map[string]*Alert)
	e.invByIP = make(map[string]*Investigation)

	e.authFails.reset()
	e.sensitiveReads.reset()
	e.exfil.reset()
	e.exfilBurst.reset()
	e.recon.reset()
	e.cooldowns.reset()
	e.stages.reset()

	slog.Info("engine state reset")
}

// Stats returns engine counters for the stats endpoint.
func (e *Engine) Stats() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	bySeverity := make(map[string]int)
	for _, a := range e.alerts {
		bySeverity[string(a.Severity)]++
	}

	return map[string]any{
		"events":          len(e.events),
		"alerts":          len(e.alerts),
		"investigations":  len(e.investigations),
		"alerts_severity": bySeverity,
	}
}
