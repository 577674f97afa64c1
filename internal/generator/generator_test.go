package generator

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"socwatch/internal/config"
	"socwatch/internal/schema"
)

type captureSink struct {
	events []*schema.Event
}

func (s *captureSink) Push(ev *schema.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func testConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		Enabled:        true,
		BenignInterval: config.Duration(1600 * time.Millisecond),
		AttackInterval: config.Duration(45 * time.Second),
		EventLogCap:    7000,
		EventLogTrim:   1500,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(cfg config.GeneratorConfig) (*Generator, *Policy, *captureSink) {
	policy := NewPolicy()
	sink := &captureSink{}
	g := New(cfg, policy, sink, testLogger())
	g.sleep = func(time.Duration) {}
	return g, policy, sink
}

func TestBenignTickEmitsHomeTraffic(t *testing.T) {
	g, _, sink := newTestGenerator(testConfig())

	for i := 0; i < 50; i++ {
		g.benignTick()
	}

	if len(sink.events) != 50 {
		t.Fatalf("got %d events, want 50", len(sink.events))
	}
	for i, ev := range sink.events {
		if !ev.Meta.Home {
			t.Errorf("event %d not home-tagged: %+v", i, ev)
		}
		if ev.Meta.Attack {
			t.Errorf("event %d attack-tagged benign traffic", i)
		}
		if ev.ID != int64(i+1) {
			t.Errorf("event %d has id %d, want %d", i, ev.ID, i+1)
		}
		if got := g.HomeIP(ev.User); got != ev.IP {
			t.Errorf("event %d from %s, want home ip %s", i, ev.IP, got)
		}
	}
}

func TestBenignTickHonorsPolicy(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{"disabled user", "user_disabled"},
		{"blocked home ip", "ip_blocked"},
		{"password reset required", "password_reset_required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, policy, sink := newTestGenerator(testConfig())

			// Apply to every user and home IP so the random pick always hits
			// the policy path.
			for _, u := range users {
				switch tt.reason {
				case "user_disabled":
					policy.DisableUser(u)
				case "ip_blocked":
					policy.BlockIP(g.HomeIP(u))
				case "password_reset_required":
					policy.ForcePasswordReset(u)
				}
			}

			g.benignTick()

			if len(sink.events) != 1 {
				t.Fatalf("got %d events, want 1", len(sink.events))
			}
			ev := sink.events[0]
			if ev.Type != schema.EventPolicyBlock {
				t.Fatalf("event type = %q, want %q", ev.Type, schema.EventPolicyBlock)
			}
			if ev.Meta.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", ev.Meta.Reason, tt.reason)
			}
		})
	}
}

func TestAttackSequenceShape(t *testing.T) {
	g, _, sink := newTestGenerator(testConfig())

	g.runAttackSequence(context.Background(), "user2", "77.77.77.77")

	counts := map[schema.EventType]int{}
	for _, ev := range sink.events {
		if !ev.Meta.Attack {
			t.Errorf("sequence emitted non-attack event %+v", ev)
		}
		if ev.IP != "77.77.77.77" || ev.User != "user2" {
			t.Errorf("wrong attribution: %+v", ev)
		}
		counts[ev.Type]++
	}

	if counts[schema.EventNetConnAttempt] != 6 {
		t.Errorf("recon probes = %d, want 6", counts[schema.EventNetConnAttempt])
	}
	if counts[schema.EventAuthFail] != 8 {
		t.Errorf("auth failures = %d, want 8", counts[schema.EventAuthFail])
	}
	if counts[schema.EventAuthSuccess] != 1 {
		t.Errorf("logins = %d, want 1", counts[schema.EventAuthSuccess])
	}
	if n := counts[schema.EventFileReadSensitive]; n < 5 || n > 7 {
		t.Errorf("sensitive reads = %d, want 5..7", n)
	}
	if counts[schema.EventNetBytesOut] != exfilBurstSize {
		t.Errorf("exfil bursts = %d, want %d", counts[schema.EventNetBytesOut], exfilBurstSize)
	}

	for _, ev := range sink.events {
		if ev.Type == schema.EventNetBytesOut {
			if ev.Meta.Bytes < 150_000 || ev.Meta.Bytes > 210_000 {
				t.Errorf("exfil bytes = %d, want 150000..210000", ev.Meta.Bytes)
			}
		}
	}
}

func TestAttackSequenceSuppressedByPolicy(t *testing.T) {
	g, policy, sink := newTestGenerator(testConfig())
	policy.BlockIP("77.77.77.77")

	g.runAttackSequence(context.Background(), "user2", "77.77.77.77")

	if len(sink.events) != 1 {
		t.Fatalf("got %d events, want only the suppression record", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != schema.EventPolicyBlock || ev.Meta.Reason != "ip_blocked" {
		t.Errorf("suppression record = %+v", ev)
	}
}

func TestAttackSequenceHaltsMidway(t *testing.T) {
	g, policy, sink := newTestGenerator(testConfig())

	// Containment lands after the third probe.
	probes := 0
	g.sleep = func(time.Duration) {
		probes++
		if probes == 3 {
			policy.BlockIP("77.77.77.77")
		}
	}

	g.runAttackSequence(context.Background(), "user2", "77.77.77.77")

	for _, ev := range sink.events {
		if ev.Type == schema.EventAuthFail || ev.Type == schema.EventAuthSuccess {
			t.Fatalf("sequence continued past containment: %+v", ev)
		}
	}
}

func TestConcurrentProducersKeepSinkOrdered(t *testing.T) {
	g, _, sink := newTestGenerator(testConfig())

	// Benign ticks race the attack goroutines, like at runtime. Every
	// event must reach the sink in the order its ID and timestamp were
	// assigned or the consumer's rolling windows see time run backwards.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			g.benignTick()
		}
	}()
	go func() {
		defer wg.Done()
		g.runAttackSequence(context.Background(), "user1", "81.81.81.81")
	}()
	go func() {
		defer wg.Done()
		g.runAttackSequence(context.Background(), "user4", "82.82.82.82")
	}()
	wg.Wait()

	for i, ev := range sink.events {
		if ev.ID != int64(i+1) {
			t.Fatalf("sink position %d holds id %d; enqueue order diverged from assignment order", i, ev.ID)
		}
		if i > 0 && ev.TS < sink.events[i-1].TS {
			t.Fatalf("timestamp regressed at sink position %d: %d after %d", i, ev.TS, sink.events[i-1].TS)
		}
	}
}

func TestEventLogTrim(t *testing.T) {
	cfg := testConfig()
	cfg.EventLogCap = 10
	cfg.EventLogTrim = 4
	g, _, _ := newTestGenerator(cfg)

	for i := 0; i < 11; i++ {
		g.benignTick()
	}

	g.mu.Lock()
	n := len(g.events)
	first := g.events[0].ID
	g.mu.Unlock()

	if n != 7 {
		t.Errorf("log length = %d, want 7 after trim", n)
	}
	if first != 5 {
		t.Errorf("oldest retained id = %d, want 5", first)
	}

	// IDs keep climbing across the trim.
	got, latest := g.Since(0)
	if latest != 11 {
		t.Errorf("latest id = %d, want 11", latest)
	}
	if len(got) != 7 {
		t.Errorf("Since(0) returned %d events, want 7", len(got))
	}
}

func TestSince(t *testing.T) {
	g, _, _ := newTestGenerator(testConfig())
	for i := 0; i < 5; i++ {
		g.benignTick()
	}

	got, latest := g.Since(3)
	if latest != 5 {
		t.Errorf("latest = %d, want 5", latest)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 5 {
		t.Errorf("Since(3) = %v", got)
	}

	if events, _ := g.Since(5); events != nil {
		t.Errorf("Since(latest) = %v, want none", events)
	}
}

func TestGenPublicIP(t *testing.T) {
	g, _, _ := newTestGenerator(testConfig())

	for i := 0; i < 500; i++ {
		ip := g.genPublicIP()
		parts := strings.Split(ip, ".")
		if len(parts) != 4 {
			t.Fatalf("malformed ip %q", ip)
		}
		octets := make([]int, 4)
		for j, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || n > 255 {
				t.Fatalf("bad octet %q in %q", p, ip)
			}
			octets[j] = n
		}

		a, b := octets[0], octets[1]
		if a < 11 || a > 223 {
			t.Errorf("first octet %d outside public range: %s", a, ip)
		}
		if a == 127 || (a == 169 && b == 254) || (a == 172 && b >= 16 && b <= 31) || (a == 192 && b == 168) {
			t.Errorf("generated reserved address %s", ip)
		}
	}
}

func TestRotatingAttackerIP(t *testing.T) {
	g, policy, _ := newTestGenerator(testConfig())

	seen := make(map[string]bool)
	for i := 0; i < attackerHistoryMax; i++ {
		ip := g.rotatingAttackerIP()
		if seen[ip] {
			t.Errorf("ip %s repeated while history has room", ip)
		}
		seen[ip] = true
	}

	g.mu.Lock()
	n := len(g.attackerHistory)
	g.mu.Unlock()
	if n > attackerHistoryMax {
		t.Errorf("history length = %d, want <= %d", n, attackerHistoryMax)
	}

	// Blocked addresses are never returned.
	for ip := range seen {
		policy.BlockIP(ip)
	}
	if ip := g.rotatingAttackerIP(); policy.IsBlockedIP(ip) {
		t.Errorf("returned blocked ip %s", ip)
	}
}

func TestGeneratorReset(t *testing.T) {
	g, _, _ := newTestGenerator(testConfig())
	for i := 0; i < 3; i++ {
		g.benignTick()
	}
	g.rotatingAttackerIP()

	g.Reset()

	if events, latest := g.Since(0); len(events) != 0 || latest != 0 {
		t.Errorf("after reset: events=%d latest=%d, want empty", len(events), latest)
	}

	g.benignTick()
	if events, _ := g.Since(0); len(events) != 1 || events[0].ID != 1 {
		t.Errorf("ids do not restart at 1 after reset: %v", events)
	}
}

func TestPolicySnapshot(t *testing.T) {
	p := NewPolicy()
	p.BlockIP("1.1.1.1")
	p.DisableUser("user3")
	p.ForcePasswordReset("user4")

	snap := p.Snapshot()
	if len(snap.BlockedIPs) != 1 || snap.BlockedIPs[0] != "1.1.1.1" {
		t.Errorf("blocked ips = %v", snap.BlockedIPs)
	}
	if len(snap.DisabledUsers) != 1 || len(snap.PasswordResetUsers) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	p.Reset()
	if p.IsBlockedIP("1.1.1.1") || p.IsDisabledUser("user3") || p.IsPasswordResetRequired("user4") {
		t.Error("reset left policy state behind")
	}
}
