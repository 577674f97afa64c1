package engine

import (
	"fmt"
	"strconv"

	"socwatch/internal/schema"
)

// Detector cooldown floors in milliseconds. Operators can raise dedup
// above these, never below.
const (
	reconCooldownFloor     = 20_000
	bruteCooldownFloor     = 30_000
	anomalousCooldownFloor = 45_000
	sensitiveCooldownFloor = 45_000
	exfilCooldownFloor     = 60_000
)

// passwordGuessFloor is the fixed low-tier threshold for the
// early-warning password guessing alert.
const passwordGuessFloor = 4

// suspTransferWindowMs is the fixed short window for the medium-tier
// transfer volume alert.
const suspTransferWindowMs = 10_000

// cooldownFor combines a detector floor with the configured dedup.
func cooldownFor(floor int64, dedupSeconds int) int64 {
	return maxInt64(floor, int64(dedupSeconds)*1000)
}

// detectRecon flags one IP probing many distinct destination ports
// within the window.
func (e *Engine) detectRecon(events []*schema.Event) {
	for _, ev := range events {
		if ev.Type != schema.EventNetConnAttempt {
			continue
		}

		cfg := e.settings.Current()
		windowMs := int64(cfg.WindowSeconds) * 1000
		thresh := cfg.ReconConnAttempts
		if thresh < 2 {
			thresh = 2
		}
		if thresh > 50 {
			thresh = 50
		}

		port := "unknown"
		if ev.Meta.Port > 0 {
			port = strconv.Itoa(ev.Meta.Port)
		}

		e.recon.record(ev.IP, port, ev.TS)
		e.recon.prune(ev.IP, ev.TS-windowMs)

		distinct := e.recon.distinct(ev.IP)
		if distinct < thresh {
			continue
		}

		cooldown := cooldownFor(reconCooldownFloor, cfg.DedupSeconds)
		if !e.cooldowns.allow(AlertRecon, ev.IP, ev.User, ev.TS, cooldown) {
			continue
		}

		explanation := fmt.Sprintf(
			"IP %s attempted connections to %d distinct ports within %ds (%s). "+
				"This resembles reconnaissance / service probing.",
			ev.IP, distinct, cfg.WindowSeconds, joinPorts(e.recon.ports(ev.IP, 10)))

		e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertRecon, SeverityMedium, explanation))
	}
}

func joinPorts(ports []string) string {
	out := ""
	for i, p := range ports {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// detectBruteForce counts failed logins per IP within the window. At or
// above the configured threshold it raises the HIGH alert, marks the
// brute-force stage and runs the correlation check; the threshold is
// checked before the fixed low floor so small thresholds stay exact.
// Below the threshold but at or above the floor it raises the LOW
// early-warning tier when enabled.
func (e *Engine) detectBruteForce(events []*schema.Event) {
	for _, ev := range events {
		if ev.Type != schema.EventAuthFail {
			continue
		}

		cfg := e.settings.Current()
		windowMs := int64(cfg.WindowSeconds) * 1000

		e.authFails.prune(ev.IP, ev.TS-windowMs)
		e.authFails.record(ev.IP, ev.TS)

		count := e.authFails.count(ev.IP)
		cooldown := cooldownFor(bruteCooldownFloor, cfg.DedupSeconds)

		if count >= cfg.BruteForceFails {
			if !e.cooldowns.allow(AlertBruteForce, ev.IP, ev.User, ev.TS, cooldown) {
				continue
			}

			explanation := fmt.Sprintf(
				"Detected %d failed logins from IP %s within %d seconds (threshold=%d). "+
					"Likely brute-force or credential stuffing against account %s.",
				count, ev.IP, cfg.WindowSeconds, cfg.BruteForceFails, ev.User)

			e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertBruteForce, SeverityHigh, explanation))

			e.stages.mark(ev.IP, ev.User, stageBruteForce, ev.TS)
			e.checkCorrelation(ev.IP, ev.User, ev.TS)
			continue
		}

		if !cfg.EarlyWarnings || count < passwordGuessFloor {
			continue
		}
		if !e.cooldowns.allow(AlertPasswordGuess, ev.IP, ev.User, ev.TS, cooldown) {
			continue
		}
		explanation := fmt.Sprintf(
			"Detected %d failed logins from IP %s within %d seconds, approaching the "+
				"brute-force threshold (%d). Early warning for account %s.",
			count, ev.IP, cfg.WindowSeconds, cfg.BruteForceFails, ev.User)
		e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertPasswordGuess, SeverityLow, explanation))
	}
}

// detectAnomalousLogin flags successful authentications carried by
// attack-tagged traffic. Binary rule, no window.
func (e *Engine) detectAnomalousLogin(events []*schema.Event) {
	for _, ev := range events {
		if ev.Type != schema.EventAuthSuccess || !ev.Meta.Attack {
			continue
		}

		cfg := e.settings.Current()
		cooldown := cooldownFor(anomalousCooldownFloor, cfg.DedupSeconds)
		if !e.cooldowns.allow(AlertAnomalousLogin, ev.IP, ev.User, ev.TS, cooldown) {
			continue
		}

		explanation := fmt.Sprintf(
			"Successful authentication for %s from IP %s marked as attack traffic. "+
				"Because users normally authenticate from their stable home IP, this indicates "+
				"a likely compromised login.",
			ev.User, ev.IP)

		e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertAnomalousLogin, SeverityHigh, explanation))

		e.stages.mark(ev.IP, ev.User, stageAnomalousLogin, ev.TS)
		e.checkCorrelation(ev.IP, ev.User, ev.TS)
	}
}

// detectSensitiveFiles counts attack-tagged sensitive file reads per IP.
// Half the configured threshold (rounded up) raises the MEDIUM tier; the
// full threshold raises the HIGH pattern alert. Both mark the file-spike
// stage and run the correlation check.
func (e *Engine) detectSensitiveFiles(events []*schema.Event) {
	for _, ev := range events {
		if ev.Type != schema.EventFileReadSensitive || !ev.Meta.Attack {
			continue
		}

		cfg := e.settings.Current()
		windowMs := int64(cfg.WindowSeconds) * 1000
		thresh := cfg.SensitiveReads
		medThresh := (thresh + 1) / 2

		e.sensitiveReads.prune(ev.IP, ev.TS-windowMs)
		e.sensitiveReads.record(ev.IP, ev.TS)

		count := e.sensitiveReads.count(ev.IP)
		if count < medThresh {
			continue
		}

		cooldown := cooldownFor(sensitiveCooldownFloor, cfg.DedupSeconds)

		if count < thresh {
			if !e.cooldowns.allow(AlertElevatedReads, ev.IP, ev.User, ev.TS, cooldown) {
				continue
			}
			explanation := fmt.Sprintf(
				"Observed %d sensitive file reads from IP %s within %d seconds, elevated but "+
					"below the pattern threshold (%d). Possible early collection activity.",
				count, ev.IP, cfg.WindowSeconds, thresh)
			e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertElevatedReads, SeverityMedium, explanation))

			e.stages.mark(ev.IP, ev.User, stageFileSpike, ev.TS)
			e.checkCorrelation(ev.IP, ev.User, ev.TS)
			continue
		}

		if !e.cooldowns.allow(AlertSensitiveFiles, ev.IP, ev.User, ev.TS, cooldown) {
			continue
		}

		explanation := fmt.Sprintf(
			"Observed %d sensitive file reads from IP %s within %d seconds (threshold=%d). "+
				"In combination with attack-tagged traffic, this suggests post-compromise "+
				"collection activity.",
			count, ev.IP, cfg.WindowSeconds, thresh)

		e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertSensitiveFiles, SeverityHigh, explanation))

		e.stages.mark(ev.IP, ev.User, stageFileSpike, ev.TS)
		e.checkCorrelation(ev.IP, ev.User, ev.TS)
	}
}

// detectExfil sums attack-tagged outbound bytes per IP. A burst reaching
// half the configured threshold inside a fixed short window raises the
// MEDIUM tier; the full threshold over the configured window raises the
// CRITICAL exfiltration alert. Both mark the exfil stage and run the
// correlation check. A missing byte count reads as zero.
func (e *Engine) detectExfil(events []*schema.Event) {
	for _, ev := range events {
		if ev.Type != schema.EventNetBytesOut || !ev.Meta.Attack {
			continue
		}

		cfg := e.settings.Current()
		windowMs := int64(cfg.WindowSeconds) * 1000
		thresh := cfg.ExfilBytes

		e.exfil.prune(ev.IP, ev.TS-windowMs)
		e.exfil.record(ev.IP, ev.TS, ev.Meta.Bytes)

		e.exfilBurst.prune(ev.IP, ev.TS-suspTransferWindowMs)
		e.exfilBurst.record(ev.IP, ev.TS, ev.Meta.Bytes)

		sum := e.exfil.sum(ev.IP)
		cooldown := cooldownFor(exfilCooldownFloor, cfg.DedupSeconds)

		if sum >= thresh {
			if !e.cooldowns.allow(AlertExfil, ev.IP, ev.User, ev.TS, cooldown) {
				continue
			}

			explanation := fmt.Sprintf(
				"Outbound transfer volume from IP %s reached ~%d bytes in %d seconds "+
					"(threshold=%d). This resembles data exfiltration following compromise.",
				ev.IP, sum, cfg.WindowSeconds, thresh)

			e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertExfil, SeverityCritical, explanation))

			e.stages.mark(ev.IP, ev.User, stageExfilSpike, ev.TS)
			e.checkCorrelation(ev.IP, ev.User, ev.TS)
			continue
		}

		burst := e.exfilBurst.sum(ev.IP)
		if burst < thresh/2 {
			continue
		}

		if !e.cooldowns.allow(AlertSuspTransfer, ev.IP, ev.User, ev.TS, cooldown) {
			continue
		}

		explanation := fmt.Sprintf(
			"Outbound burst of ~%d bytes from IP %s within %d seconds, above half the "+
				"exfiltration threshold (%d). Suspicious transfer volume.",
			burst, ev.IP, suspTransferWindowMs/1000, thresh)

		e.emit(newAlert(ev.TS, ev.IP, ev.User, AlertSuspTransfer, SeverityMedium, explanation))

		e.stages.mark(ev.IP, ev.User, stageExfilSpike, ev.TS)
		e.checkCorrelation(ev.IP, ev.User, ev.TS)
	}
}
