package config

import "sync"

// Settings holds the live detection-policy knobs. All values are clamped
// to their documented ranges before the engine ever reads them, so the
// engine performs no further range validation of its own.
type Settings struct {
	// Rolling correlation window in seconds (how far back detectors look).
	WindowSeconds int `yaml:"window_seconds" json:"windowSeconds"`

	// Deduplicate identical alerts within this cooldown.
	DedupSeconds int `yaml:"dedup_seconds" json:"dedupSeconds"`

	// Thresholds, all evaluated within the window.
	BruteForceFails   int   `yaml:"brute_force_fails" json:"bruteForceFails"`
	ReconConnAttempts int   `yaml:"recon_conn_attempts" json:"reconConnAttempts"`
	SensitiveReads    int   `yaml:"sensitive_reads" json:"sensitiveReads"`
	ExfilBytes        int64 `yaml:"exfil_bytes" json:"exfilBytes"`

	// Escalation policy. Part of the settings contract but unused by the
	// current detector logic.
	EscalateToHigh     int `yaml:"escalate_to_high" json:"escalateToHigh"`
	EscalateToCritical int `yaml:"escalate_to_critical" json:"escalateToCritical"`

	// EarlyWarnings enables the LOW-tier password guessing detector.
	// Off by default: with it on, a failure burst that crosses the
	// brute-force threshold produces two alerts instead of one.
	EarlyWarnings bool `yaml:"early_warnings" json:"earlyWarnings"`
}

// DefaultSettings returns the default detection settings.
func DefaultSettings() Settings {
	return Settings{
		WindowSeconds:      60,
		DedupSeconds:       20,
		BruteForceFails:    8,
		ReconConnAttempts:  6,
		SensitiveReads:     4,
		ExfilBytes:         300_000,
		EscalateToHigh:     1,
		EscalateToCritical: 2,
		EarlyWarnings:      false,
	}
}

func clampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func clampInt64(n, min, max int64) int64 {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// Clamped returns a copy of s with every field forced into its valid range.
func (s Settings) Clamped() Settings {
	return Settings{
		WindowSeconds:      clampInt(s.WindowSeconds, 15, 300),
		DedupSeconds:       clampInt(s.DedupSeconds, 0, 300),
		BruteForceFails:    clampInt(s.BruteForceFails, 3, 50),
		ReconConnAttempts:  clampInt(s.ReconConnAttempts, 3, 50),
		SensitiveReads:     clampInt(s.SensitiveReads, 1, 50),
		ExfilBytes:         clampInt64(s.ExfilBytes, 50_000, 5_000_000),
		EscalateToHigh:     clampInt(s.EscalateToHigh, 1, 10),
		EscalateToCritical: clampInt(s.EscalateToCritical, 1, 10),
		EarlyWarnings:      s.EarlyWarnings,
	}
}

// SettingsStore is the hot-reloadable settings object. Detectors read it
// at evaluation time, not once per batch, so an operator change takes
// effect on the next event processed.
type SettingsStore struct {
	mu      sync.RWMutex
	current Settings
}

// NewSettingsStore creates a store seeded with the given settings.
func NewSettingsStore(s Settings) *SettingsStore {
	return &SettingsStore{current: s.Clamped()}
}

// Current returns the live settings.
func (st *SettingsStore) Current() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Update replaces the settings, clamping every field first. The clamped
// result is returned so callers can echo the canonical values.
func (st *SettingsStore) Update(s Settings) Settings {
	clamped := s.Clamped()
	st.mu.Lock()
	st.current = clamped
	st.mu.Unlock()
	return clamped
}

// Reset restores the defaults and returns them.
func (st *SettingsStore) Reset() Settings {
	return st.Update(DefaultSettings())
}
