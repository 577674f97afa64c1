package engine

// cooldownKey identifies one dedup slot: same alert kind, same attacker,
// same victim.
type cooldownKey struct {
	alertType string
	ip        string
	user      string
}

// cooldownGate suppresses repeated alerts of the same kind for the same
// (type, ip, user) key within a cooldown interval.
type cooldownGate struct {
	last map[cooldownKey]int64
}

func newCooldownGate() *cooldownGate {
	return &cooldownGate{last: make(map[cooldownKey]int64)}
}

// allow reports whether an alert may be emitted at ts. A suppressed call
// leaves the record untouched; an allowed call records ts as the new
// last-emission time.
func (g *cooldownGate) allow(alertType, ip, user string, ts, cooldownMs int64) bool {
	if user == "" {
		user = "-"
	}
	key := cooldownKey{alertType: alertType, ip: ip, user: user}
	if last, ok := g.last[key]; ok && ts-last < cooldownMs {
		return false
	}
	g.last[key] = ts
	return true
}

func (g *cooldownGate) reset() {
	g.last = make(map[cooldownKey]int64)
}

// maxInt64 is the cooldown floor helper: detector floors keep an operator
// from configuring dedup below a safe minimum and causing alert storms.
func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
