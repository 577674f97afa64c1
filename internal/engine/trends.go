package engine

// Trend aggregation over the engine's bounded event log: attack-tagged
// events per minute against home-tagged successful auths per minute, the
// same series the overview dashboard charts.

import "socwatch/internal/schema"

// TrendPoint is one per-minute bin.
type TrendPoint struct {
	TS       int64 `json:"ts"` // bin start, epoch ms
	Threat   int   `json:"threat"`
	Baseline int   `json:"baseline"`
}

// TrendReport summarizes recent activity for the overview scene.
type TrendReport struct {
	Points         []TrendPoint `json:"points"`
	ThreatPressure float64      `json:"threatPressure"`
	BaselineMean   float64      `json:"baselineMean"`
}

const trendBinMs = 60_000

// Trends bins the retained events into per-minute threat and baseline
// counts over the given span ending at now (epoch ms). Bins align to
// minute boundaries; the current bin is dropped when less than half
// complete so charts do not dip at the right edge.
func (e *Engine) Trends(now int64, minutes int) TrendReport {
	if minutes <= 0 {
		minutes = 12
	}
	lastBin := now - now%trendBinMs
	start := lastBin - int64(minutes-1)*trendBinMs

	points := make([]TrendPoint, minutes)
	for i := range points {
		points[i].TS = start + int64(i)*trendBinMs
	}

	e.mu.Lock()
	for _, ev := range e.events {
		if ev.TS < start || ev.TS > now {
			continue
		}
		idx := int((ev.TS - start) / trendBinMs)
		if idx < 0 || idx >= len(points) {
			continue
		}
		if ev.Meta.Attack {
			points[idx].Threat++
		}
		if ev.Meta.Home && ev.Type == schema.EventAuthSuccess {
			points[idx].Baseline++
		}
	}
	e.mu.Unlock()

	if now-lastBin < trendBinMs/2 && len(points) > 1 {
		points = points[:len(points)-1]
	}

	report := TrendReport{Points: points}
	if len(points) > 0 {
		last := points[len(points)-1]
		if last.Baseline > 0 {
			report.ThreatPressure = float64(last.Threat) / float64(last.Baseline)
		} else if last.Threat > 0 {
			report.ThreatPressure = float64(last.Threat)
		}
		var sum int
		for _, p := range points {
			sum += p.Baseline
		}
		report.BaselineMean = float64(sum) / float64(len(points))
	}
	return report
}
