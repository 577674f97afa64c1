package engine

import "fmt"

// Attack stages tracked per (ip, user) for multi-stage correlation.
type stage string

const (
	stageBruteForce     stage = "bruteForceTs"
	stageAnomalousLogin stage = "anomalousLoginTs"
	stageFileSpike      stage = "fileSpikeTs"
	stageExfilSpike     stage = "exfilSpikeTs"
)

type stageKey struct {
	ip   string
	user string
}

// stageSet holds the most recent timestamp each stage was observed.
// Zero means the stage has not been seen. No history is kept.
type stageSet struct {
	bruteForce     int64
	anomalousLogin int64
	fileSpike      int64
	exfilSpike     int64
}

// stageTracker records the latest occurrence of each attack stage per
// (ip, user) pair.
type stageTracker struct {
	byKey map[stageKey]*stageSet
}

func newStageTracker() *stageTracker {
	return &stageTracker{byKey: make(map[stageKey]*stageSet)}
}

// mark stores (overwrites) the timestamp for one stage.
func (t *stageTracker) mark(ip, user string, s stage, ts int64) {
	key := stageKey{ip: ip, user: user}
	set := t.byKey[key]
	if set == nil {
		set = &stageSet{}
		t.byKey[key] = set
	}
	switch s {
	case stageBruteForce:
		set.bruteForce = ts
	case stageAnomalousLogin:
		set.anomalousLogin = ts
	case stageFileSpike:
		set.fileSpike = ts
	case stageExfilSpike:
		set.exfilSpike = ts
	}
}

// get returns the stage set for an (ip, user) pair, or an empty set.
func (t *stageTracker) get(ip, user string) stageSet {
	if set := t.byKey[stageKey{ip: ip, user: user}]; set != nil {
		return *set
	}
	return stageSet{}
}

func (t *stageTracker) reset() {
	t.byKey = make(map[stageKey]*stageSet)
}

func within(a, b, horizon int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= horizon
}

// checkCorrelation evaluates the full attack chain for (ip, user) after a
// qualifying detector firing at ts: brute-force and anomalous-login stages
// within the horizon of each other, plus post-compromise behaviour (file
// spike or exfil spike) within the horizon of the anomalous login. On
// success it emits a single CRITICAL confirmed-compromise alert, gated by
// its own cooldown so repeated qualifying conditions stay idempotent.
func (e *Engine) checkCorrelation(ip, user string, ts int64) {
	cfg := e.settings.Current()
	horizon := maxInt64(60_000, int64(cfg.WindowSeconds)*2*1000)

	s := e.stages.get(ip, user)
	if s.bruteForce == 0 || s.anomalousLogin == 0 {
		return
	}

	hasPost := (s.fileSpike != 0 && within(s.fileSpike, s.anomalousLogin, horizon)) ||
		(s.exfilSpike != 0 && within(s.exfilSpike, s.anomalousLogin, horizon))
	if !within(s.bruteForce, s.anomalousLogin, horizon) || !hasPost {
		return
	}

	cooldown := maxInt64(horizon, int64(cfg.DedupSeconds)*1000)
	if !e.cooldowns.allow(AlertCompromise, ip, user, ts, cooldown) {
		return
	}

	explanation := fmt.Sprintf(
		"Multi-stage correlation for (%s): brute-force activity from %s followed by "+
			"a successful login and post-compromise behaviour (sensitive file access and/or exfil). "+
			"This pattern strongly indicates account compromise.",
		user, ip)

	e.emit(newAlert(ts, ip, user, AlertCompromise, SeverityCritical, explanation))
}
