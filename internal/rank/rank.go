// Package rank filters a per-cycle signal batch and orders the survivors into a
// bounded top-N list.
package rank

import (
	"sort"

	"github.com/roteirods-byte/ENTRADA-PRO/internal/signal"
)

// TierPoints maps a qualitative tier to its integer score contribution. The favorable
// end of each scale (low risk, high zone, high priority) earns the most points.
type TierPoints struct {
	High int `yaml:"high"`
	Mid  int `yaml:"mid"`
	Low  int `yaml:"low"`
}

// DefaultTierPoints is the 3/2/1 scheme used by the dashboard.
var DefaultTierPoints = TierPoints{High: 3, Mid: 2, Low: 1}

// Options carries the selection thresholds and list bound.
type Options struct {
	TopN             int
	GainMinPct       float64
	ConfidenceMinPct float64
	Points           TierPoints
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = 10
	}
	if o.Points == (TierPoints{}) {
		o.Points = DefaultTierPoints
	}
	return o
}

// Score sums the tier points of a signal's risk, zone, and priority levels.
func Score(s signal.Signal, points TierPoints) int {
	return riskPoints(s.Risk, points) + favorPoints(s.Zone, points) + favorPoints(s.Priority, points)
}

func favorPoints(t signal.Tier, p TierPoints) int {
	switch t {
	case signal.TierHigh:
		return p.High
	case signal.TierMedium:
		return p.Mid
	default:
		return p.Low
	}
}

// riskPoints inverts the scale: low risk is the favorable outcome.
func riskPoints(t signal.Tier, p TierPoints) int {
	switch t {
	case signal.TierLow:
		return p.High
	case signal.TierMedium:
		return p.Mid
	default:
		return p.Low
	}
}

// Select drops non-tradeable and under-threshold signals, then returns the top N by
// (score desc, confidence desc, gain desc, instrument asc). The four-key order is
// total, so identical input always yields identical output — the audit position ids
// depend on that.
func Select(batch []signal.Signal, opts Options) []signal.Signal {
	opts = opts.withDefaults()

	survivors := make([]signal.Signal, 0, len(batch))
	for _, s := range batch {
		if !s.Side.Tradeable() {
			continue
		}
		if s.GainPct < opts.GainMinPct || s.ConfidencePct < opts.ConfidenceMinPct {
			continue
		}
		survivors = append(survivors, s)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		sa, sb := Score(a, opts.Points), Score(b, opts.Points)
		if sa != sb {
			return sa > sb
		}
		if a.ConfidencePct != b.ConfidencePct {
			return a.ConfidencePct > b.ConfidencePct
		}
		if a.GainPct != b.GainPct {
			return a.GainPct > b.GainPct
		}
		return a.Instrument < b.Instrument
	})

	if len(survivors) > opts.TopN {
		survivors = survivors[:opts.TopN]
	}
	return survivors
}
