package generator

import "sync"

// Policy is the in-memory enforcement state driven by analyst containment
// actions. The generator consults it before emitting traffic, so a blocked
// attacker or disabled account stops producing events.
type Policy struct {
	mu                 sync.RWMutex
	blockedIPs         map[string]struct{}
	disabledUsers      map[string]struct{}
	passwordResetUsers map[string]struct{}
}

// PolicySnapshot is the JSON-friendly view of the policy state.
type PolicySnapshot struct {
	BlockedIPs         []string `json:"blockedIps"`
	DisabledUsers      []string `json:"disabledUsers"`
	PasswordResetUsers []string `json:"passwordResetUsers"`
}

// NewPolicy creates an empty policy.
func NewPolicy() *Policy {
	return &Policy{
		blockedIPs:         make(map[string]struct{}),
		disabledUsers:      make(map[string]struct{}),
		passwordResetUsers: make(map[string]struct{}),
	}
}

// BlockIP adds an IP to the block list.
func (p *Policy) BlockIP(ip string) {
	p.mu.Lock()
	p.blockedIPs[ip] = struct{}{}
	p.mu.Unlock()
}

// DisableUser adds a user to the disabled list.
func (p *Policy) DisableUser(user string) {
	p.mu.Lock()
	p.disabledUsers[user] = struct{}{}
	p.mu.Unlock()
}

// ForcePasswordReset marks a user as requiring a password reset.
func (p *Policy) ForcePasswordReset(user string) {
	p.mu.Lock()
	p.passwordResetUsers[user] = struct{}{}
	p.mu.Unlock()
}

// IsBlockedIP reports whether the IP is blocked.
func (p *Policy) IsBlockedIP(ip string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.blockedIPs[ip]
	return ok
}

// IsDisabledUser reports whether the user is disabled.
func (p *Policy) IsDisabledUser(user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.disabledUsers[user]
	return ok
}

// IsPasswordResetRequired reports whether the user must reset their password.
func (p *Policy) IsPasswordResetRequired(user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.passwordResetUsers[user]
	return ok
}

// Reset clears all policy state.
func (p *Policy) Reset() {
	p.mu.Lock()
	p.blockedIPs = make(map[string]struct{})
	p.disabledUsers = make(map[string]struct{})
	p.passwordResetUsers = make(map[string]struct{})
	p.mu.Unlock()
}

// Snapshot returns a copy of the policy state.
func (p *Policy) Snapshot() PolicySnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := PolicySnapshot{
		BlockedIPs:         make([]string, 0, len(p.blockedIPs)),
		DisabledUsers:      make([]string, 0, len(p.disabledUsers)),
		PasswordResetUsers: make([]string, 0, len(p.passwordResetUsers)),
	}
	for ip := range p.blockedIPs {
		snap.BlockedIPs = append(snap.BlockedIPs, ip)
	}
	for u := range p.disabledUsers {
		snap.DisabledUsers = append(snap.DisabledUsers, u)
	}
	for u := range p.passwordResetUsers {
		snap.PasswordResetUsers = append(snap.PasswordResetUsers, u)
	}
	return snap
}
