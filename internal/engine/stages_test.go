package engine

import (
	"testing"

	"socwatch/internal/config"
	"socwatch/internal/schema"
)

func TestStageTrackerMarkOverwrites(t *testing.T) {
	tr := newStageTracker()

	tr.mark("1.1.1.1", "bob", stageBruteForce, 1000)
	tr.mark("1.1.1.1", "bob", stageBruteForce, 5000)
	tr.mark("1.1.1.1", "bob", stageAnomalousLogin, 6000)

	s := tr.get("1.1.1.1", "bob")
	if s.bruteForce != 5000 {
		t.Errorf("bruteForce = %d, want latest mark 5000", s.bruteForce)
	}
	if s.anomalousLogin != 6000 {
		t.Errorf("anomalousLogin = %d, want 6000", s.anomalousLogin)
	}
	if s.fileSpike != 0 || s.exfilSpike != 0 {
		t.Error("unmarked stages must stay zero")
	}

	if got := tr.get("1.1.1.1", "alice"); got != (stageSet{}) {
		t.Errorf("different user shares stage state: %+v", got)
	}
}

// fullChain drives one attacker through brute force, compromised login and
// sensitive file collection.
func fullChain(eng *Engine, ip, user string) {
	var batch []*schema.Event
	for i := 0; i < 8; i++ {
		batch = append(batch, authFail(int64(i)*1000, ip, user))
	}
	eng.Ingest(batch)
	eng.Ingest([]*schema.Event{attackLogin(10_000, ip, user)})
	eng.Ingest([]*schema.Event{
		sensitiveRead(12_000, ip, user, "/etc/shadow"),
		sensitiveRead(12_100, ip, user, "/root/.ssh/id_rsa"),
		sensitiveRead(12_200, ip, user, "/etc/passwd"),
		sensitiveRead(12_300, ip, user, "/var/db/secrets"),
	})
}

func TestCorrelationFiresOnceForFullChain(t *testing.T) {
	settings := config.DefaultSettings()
	settings.EarlyWarnings = false
	eng := newTestEngine(settings)

	fullChain(eng, "66.66.66.66", "eve")

	got := alertsOfType(eng, AlertCompromise)
	if len(got) != 1 {
		t.Fatalf("got %d compromise alerts, want exactly 1", len(got))
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("compromise severity = %q, want %q", got[0].Severity, SeverityCritical)
	}

	inv, ok := eng.invByIP["66.66.66.66"]
	if !ok {
		t.Fatal("no investigation for the attacker IP")
	}
	if inv.Severity != SeverityCritical {
		t.Errorf("investigation severity = %q, want %q", inv.Severity, SeverityCritical)
	}
}

func TestCorrelationRequiresPostCompromiseStage(t *testing.T) {
	settings := config.DefaultSettings()
	settings.EarlyWarnings = false
	eng := newTestEngine(settings)

	// Brute force plus compromised login, but no collection or exfil.
	var batch []*schema.Event
	for i := 0; i < 8; i++ {
		batch = append(batch, authFail(int64(i)*1000, "67.67.67.67", "eve"))
	}
	eng.Ingest(batch)
	eng.Ingest([]*schema.Event{attackLogin(10_000, "67.67.67.67", "eve")})

	if got := len(alertsOfType(eng, AlertCompromise)); got != 0 {
		t.Fatalf("got %d compromise alerts without a post-compromise stage, want 0", got)
	}
}

func TestCorrelationHorizonExcludesStaleStages(t *testing.T) {
	settings := config.DefaultSettings() // windowSeconds=60, horizon 120s
	settings.EarlyWarnings = false
	eng := newTestEngine(settings)

	// Direct stage marks keep the timing explicit: the brute-force stage is
	// older than the horizon relative to the login.
	eng.stages.mark("68.68.68.68", "eve", stageBruteForce, 1)
	eng.stages.mark("68.68.68.68", "eve", stageAnomalousLogin, 130_000)
	eng.stages.mark("68.68.68.68", "eve", stageFileSpike, 131_000)
	eng.checkCorrelation("68.68.68.68", "eve", 131_000)

	if got := len(alertsOfType(eng, AlertCompromise)); got != 0 {
		t.Fatalf("got %d compromise alerts with a stale brute-force stage, want 0", got)
	}

	// Refresh the stale stage inside the horizon and it fires.
	eng.stages.mark("68.68.68.68", "eve", stageBruteForce, 125_000)
	eng.checkCorrelation("68.68.68.68", "eve", 131_000)

	if got := len(alertsOfType(eng, AlertCompromise)); got != 1 {
		t.Fatalf("got %d compromise alerts inside the horizon, want 1", got)
	}
}

func TestCorrelationIdempotentWithinCooldown(t *testing.T) {
	settings := config.DefaultSettings()
	settings.EarlyWarnings = false
	eng := newTestEngine(settings)

	fullChain(eng, "69.69.69.69", "eve")
	if got := len(alertsOfType(eng, AlertCompromise)); got != 1 {
		t.Fatalf("got %d compromise alerts after full chain, want 1", got)
	}

	// More qualifying activity within the cooldown stays suppressed.
	eng.checkCorrelation("69.69.69.69", "eve", 13_000)
	eng.checkCorrelation("69.69.69.69", "eve", 20_000)

	if got := len(alertsOfType(eng, AlertCompromise)); got != 1 {
		t.Fatalf("got %d compromise alerts within cooldown, want still 1", got)
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		horizon int64
		want    bool
	}{
		{"inside", 1000, 500, 600, true},
		{"exactly at horizon", 1000, 400, 600, true},
		{"outside", 1000, 300, 600, false},
		{"order independent", 500, 1000, 600, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := within(tt.a, tt.b, tt.horizon); got != tt.want {
				t.Errorf("within(%d, %d, %d) = %v, want %v", tt.a, tt.b, tt.horizon, got, tt.want)
			}
		})
	}
}
