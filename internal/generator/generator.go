// Package generator produces synthetic telemetry: background activity from
// a small population of simulated users plus scheduled multi-stage attack
// sequences from rotating attacker IPs. It is the demo data source feeding
// the detection engine.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"socwatch/internal/config"
	"socwatch/internal/schema"
)

// Sink receives every generated event. Push errors are logged and the
// event dropped; generation never blocks on a slow consumer.
type Sink interface {
	Push(*schema.Event) error
}

var users = []string{"user1", "user2", "user3", "user4", "user5"}

var homeIPPool = []string{
	"203.0.113.10",
	"198.51.100.23",
	"192.0.2.44",
	"203.0.113.77",
	"198.51.100.99",
}

type reconPort struct {
	port    int
	service string
}

var reconPorts = []reconPort{
	{22, "ssh"},
	{80, "http"},
	{443, "https"},
	{3389, "rdp"},
	{8080, "http-alt"},
}

const attackerHistoryMax = 40

// Attack sequence timing, relative to sequence start.
const (
	reconStep      = 220 * time.Millisecond
	authFailDelay  = 1600 * time.Millisecond
	authFailStep   = 250 * time.Millisecond
	loginDelay     = 5200 * time.Millisecond
	collectDelay   = 6000 * time.Millisecond
	exfilDelay     = 7600 * time.Millisecond
	exfilBurstSize = 8
)

// Generator owns the bounded telemetry log and the attacker rotation
// state. All event IDs are assigned here, monotonically from 1.
type Generator struct {
	cfg    config.GeneratorConfig
	policy *Policy
	sink   Sink
	logger *slog.Logger

	userHomeIP map[string]string

	mu              sync.Mutex
	rng             *rand.Rand
	nextID          int64
	events          []*schema.Event
	attackerHistory []string
	attackerSet     map[string]struct{}

	// sleep is swapped out in tests to run sequences without waiting.
	sleep func(time.Duration)
}

// New creates a generator. Home IPs are assigned from a shuffled pool so
// every run maps users differently.
func New(cfg config.GeneratorConfig, policy *Policy, sink Sink, logger *slog.Logger) *Generator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	pool := append([]string(nil), homeIPPool...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	homeIP := make(map[string]string, len(users))
	for i, u := range users {
		homeIP[u] = pool[i%len(pool)]
	}

	g := &Generator{
		cfg:         cfg,
		policy:      policy,
		sink:        sink,
		logger:      logger,
		userHomeIP:  homeIP,
		rng:         rng,
		nextID:      1,
		attackerSet: make(map[string]struct{}),
		sleep:       time.Sleep,
	}

	for _, u := range users {
		logger.Debug("home ip assigned", "user", u, "ip", homeIP[u])
	}
	return g
}

// Run emits benign traffic on one ticker and schedules attack sequences on
// another until the context is cancelled.
func (g *Generator) Run(ctx context.Context) {
	benign := time.NewTicker(g.cfg.BenignInterval.Std())
	defer benign.Stop()
	attack := time.NewTicker(g.cfg.AttackInterval.Std())
	defer attack.Stop()

	g.logger.Info("telemetry generator started",
		"benign_interval", g.cfg.BenignInterval.Std(),
		"attack_interval", g.cfg.AttackInterval.Std(),
	)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("telemetry generator stopped")
			return
		case <-benign.C:
			g.benignTick()
		case <-attack.C:
			victim := g.pickUser()
			attackerIP := g.rotatingAttackerIP()
			go g.runAttackSequence(ctx, victim, attackerIP)
		}
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// push assigns an ID, appends to the bounded log and forwards to the
// sink. The sink push stays inside the lock so concurrent producers
// (benign tick vs. attack goroutines) enqueue in timestamp order, which
// the engine's rolling windows require. The sink never blocks.
func (g *Generator) push(typ schema.EventType, user, ip string, meta schema.Meta) {
	g.mu.Lock()
	ev := &schema.Event{
		ID:   g.nextID,
		TS:   nowMs(),
		Type: typ,
		IP:   ip,
		User: user,
		Meta: meta,
	}
	g.nextID++
	g.events = append(g.events, ev)
	if len(g.events) > g.cfg.EventLogCap {
		g.events = append([]*schema.Event(nil), g.events[g.cfg.EventLogTrim:]...)
	}
	err := g.sink.Push(ev)
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("event dropped", "error", err, "type", typ)
	}
}

func (g *Generator) pickUser() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return users[g.rng.Intn(len(users))]
}

func (g *Generator) randInt(min, max int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.rng.Intn(max-min+1)
}

func (g *Generator) randFloat() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// benignTick emits one event of routine home traffic for a random user,
// or a policy_block record if containment policy stops them.
func (g *Generator) benignTick() {
	user := g.pickUser()
	ip := g.userHomeIP[user]

	switch {
	case g.policy.IsDisabledUser(user):
		g.push(schema.EventPolicyBlock, user, ip,
			schema.Meta{Home: true, Reason: "user_disabled", Action: "DISABLE_USER"})
		return
	case g.policy.IsBlockedIP(ip):
		g.push(schema.EventPolicyBlock, user, ip,
			schema.Meta{Home: true, Reason: "ip_blocked", Action: "BLOCK_IP"})
		return
	case g.policy.IsPasswordResetRequired(user):
		g.push(schema.EventPolicyBlock, user, ip,
			schema.Meta{Home: true, Reason: "password_reset_required", Action: "FORCE_PASSWORD_RESET"})
		return
	}

	switch r := g.randFloat(); {
	case r < 0.35:
		g.push(schema.EventAuthSuccess, user, ip, schema.Meta{Home: true, Service: "vpn"})
	case r < 0.55:
		g.push(schema.EventAuthFail, user, ip, schema.Meta{Home: true, Service: "vpn"})
	case r < 0.8:
		g.push(schema.EventFileReadSensitive, user, ip, schema.Meta{Home: true, File: "/hr/payroll.csv"})
	default:
		g.push(schema.EventNetBytesOut, user, ip,
			schema.Meta{Home: true, Bytes: int64(g.randInt(3000, 21_000))})
	}
}

// genPublicIP draws a random routable address, retrying out of private,
// loopback, link-local and multicast space.
func (g *Generator) genPublicIP() string {
	for {
		a := g.randInt(11, 223)
		b := g.randInt(0, 255)
		c := g.randInt(0, 255)
		d := g.randInt(1, 254)

		switch {
		case a == 127:
			continue
		case a == 169 && b == 254:
			continue
		case a == 172 && b >= 16 && b <= 31:
			continue
		case a == 192 && b == 168:
			continue
		}
		return fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
	}
}

// rotatingAttackerIP returns a fresh attacker address, avoiding blocked
// IPs and recently used ones. History is bounded; when no fresh address
// can be found it falls back to the oldest unblocked one.
func (g *Generator) rotatingAttackerIP() string {
	for attempts := 0; attempts < 60; attempts++ {
		ip := g.genPublicIP()
		if g.policy.IsBlockedIP(ip) {
			continue
		}

		g.mu.Lock()
		if _, seen := g.attackerSet[ip]; seen {
			g.mu.Unlock()
			continue
		}
		g.attackerHistory = append(g.attackerHistory, ip)
		g.attackerSet[ip] = struct{}{}
		for len(g.attackerHistory) > attackerHistoryMax {
			old := g.attackerHistory[0]
			g.attackerHistory = g.attackerHistory[1:]
			delete(g.attackerSet, old)
		}
		g.mu.Unlock()
		return ip
	}

	g.mu.Lock()
	history := append([]string(nil), g.attackerHistory...)
	g.mu.Unlock()
	for _, ip := range history {
		if !g.policy.IsBlockedIP(ip) {
			return ip
		}
	}
	return "8.8.8.8"
}

// suppressed reports whether containment policy halts the sequence, and
// records the suppression when it does.
func (g *Generator) suppressed(victim, attackerIP string) bool {
	switch {
	case g.policy.IsBlockedIP(attackerIP):
		g.push(schema.EventPolicyBlock, victim, attackerIP,
			schema.Meta{Attack: true, Reason: "ip_blocked", Action: "BLOCK_IP"})
	case g.policy.IsDisabledUser(victim):
		g.push(schema.EventPolicyBlock, victim, attackerIP,
			schema.Meta{Attack: true, Reason: "user_disabled", Action: "DISABLE_USER"})
	case g.policy.IsPasswordResetRequired(victim):
		g.push(schema.EventPolicyBlock, victim, attackerIP,
			schema.Meta{Attack: true, Reason: "password_reset_required", Action: "FORCE_PASSWORD_RESET"})
	default:
		return false
	}
	return true
}

// halted is the mid-sequence policy check: containment applied while the
// sequence is running stops the remaining stages silently.
func (g *Generator) halted(victim, attackerIP string) bool {
	return g.policy.IsBlockedIP(attackerIP) ||
		g.policy.IsDisabledUser(victim) ||
		g.policy.IsPasswordResetRequired(victim)
}

// runAttackSequence plays the canonical kill chain against one victim:
// port probing, a credential-stuffing burst, a successful login, sensitive
// file collection, then bulk outbound transfer.
func (g *Generator) runAttackSequence(ctx context.Context, victim, attackerIP string) {
	if g.suppressed(victim, attackerIP) {
		return
	}

	g.logger.Info("attack sequence scheduled", "victim", victim, "attacker_ip", attackerIP)

	for i := 0; i < 6; i++ {
		if ctx.Err() != nil || g.halted(victim, attackerIP) {
			return
		}
		pick := reconPorts[g.randInt(0, len(reconPorts)-1)]
		g.push(schema.EventNetConnAttempt, victim, attackerIP,
			schema.Meta{Attack: true, Port: pick.port, Service: pick.service})
		g.sleep(reconStep)
	}

	g.sleep(authFailDelay - 6*reconStep)
	for i := 0; i < 8; i++ {
		if ctx.Err() != nil || g.halted(victim, attackerIP) {
			return
		}
		g.push(schema.EventAuthFail, victim, attackerIP, schema.Meta{Attack: true, Service: "vpn"})
		g.sleep(authFailStep)
	}

	g.sleep(loginDelay - authFailDelay - 8*authFailStep)
	if ctx.Err() != nil || g.halted(victim, attackerIP) {
		return
	}
	g.push(schema.EventAuthSuccess, victim, attackerIP, schema.Meta{Attack: true, Service: "vpn"})

	g.sleep(collectDelay - loginDelay)
	if ctx.Err() != nil || g.halted(victim, attackerIP) {
		return
	}
	files := []string{"/hr/payroll.csv", "/finance/budget.xlsx", "/customers/export.json"}
	bursts := g.randInt(5, 7)
	for i := 0; i < bursts; i++ {
		g.push(schema.EventFileReadSensitive, victim, attackerIP,
			schema.Meta{Attack: true, File: files[g.randInt(0, len(files)-1)]})
	}

	g.sleep(exfilDelay - collectDelay)
	if ctx.Err() != nil || g.halted(victim, attackerIP) {
		return
	}
	for i := 0; i < exfilBurstSize; i++ {
		g.push(schema.EventNetBytesOut, victim, attackerIP,
			schema.Meta{Attack: true, Bytes: int64(g.randInt(150_000, 210_000))})
	}
}

// PolicyChange records an analyst policy mutation in the telemetry stream.
// For user-scoped actions the event carries the user's home IP.
func (g *Generator) PolicyChange(user, ip, action string) {
	if user == "" {
		user = "-"
	}
	if ip == "" {
		ip = "-"
	}
	g.push(schema.EventPolicyChange, user, ip, schema.Meta{Action: action})
}

// Since returns copies of all events with ID greater than since, plus the
// latest assigned ID for the caller's next poll.
func (g *Generator) Since(since int64) ([]schema.Event, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []schema.Event
	for _, ev := range g.events {
		if ev.ID > since {
			out = append(out, *ev)
		}
	}
	return out, g.nextID - 1
}

// HomeIP returns the home address assigned to a user, or "-" for unknown
// users.
func (g *Generator) HomeIP(user string) string {
	if ip, ok := g.userHomeIP[user]; ok {
		return ip
	}
	return "-"
}

// Reset clears the event log, ID counter and attacker rotation state.
// Policy is owned by the caller and reset separately.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.events = nil
	g.nextID = 1
	g.attackerHistory = nil
	g.attackerSet = make(map[string]struct{})
	g.mu.Unlock()

	g.logger.Info("generator state reset")
}
