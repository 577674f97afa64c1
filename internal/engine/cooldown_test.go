package engine

import "testing"

func TestCooldownGate(t *testing.T) {
	g := newCooldownGate()

	if !g.allow(AlertBruteForce, "1.1.1.1", "bob", 0, 20_000) {
		t.Fatal("first emission must be allowed")
	}
	if g.allow(AlertBruteForce, "1.1.1.1", "bob", 10_000, 20_000) {
		t.Error("repeat inside cooldown must be suppressed")
	}

	// A suppressed call does not refresh the record: the interval is
	// measured from the last allowed emission, not the last attempt.
	if !g.allow(AlertBruteForce, "1.1.1.1", "bob", 20_000, 20_000) {
		t.Error("emission exactly at cooldown expiry must be allowed")
	}
}

func TestCooldownGateKeying(t *testing.T) {
	g := newCooldownGate()
	g.allow(AlertBruteForce, "1.1.1.1", "bob", 0, 60_000)

	tests := []struct {
		name      string
		alertType string
		ip        string
		user      string
		want      bool
	}{
		{"same key", AlertBruteForce, "1.1.1.1", "bob", false},
		{"different type", AlertRecon, "1.1.1.1", "bob", true},
		{"different ip", AlertBruteForce, "2.2.2.2", "bob", true},
		{"different user", AlertBruteForce, "1.1.1.1", "alice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.allow(tt.alertType, tt.ip, tt.user, 1000, 60_000); got != tt.want {
				t.Errorf("allow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCooldownGateNormalizesEmptyUser(t *testing.T) {
	g := newCooldownGate()

	if !g.allow(AlertRecon, "1.1.1.1", "", 0, 20_000) {
		t.Fatal("first emission must be allowed")
	}
	if g.allow(AlertRecon, "1.1.1.1", "-", 1000, 20_000) {
		t.Error("empty user and \"-\" must share a dedup slot")
	}
}
