package audit

import (
	"sort"
	"time"
)

// weekdayNames follows the dashboard convention, Monday first.
var weekdayNames = [7]string{"SEG", "TER", "QUA", "QUI", "SEX", "SAB", "DOM"}

// Overall aggregates the full closed log. The TTL counters split EXPIRED closes by the
// sign of their realized P&L, since an expiry in profit is not a loss.
type Overall struct {
	Total      int     `json:"total"`
	Win        int     `json:"win"`
	Loss       int     `json:"loss"`
	Expired    int     `json:"expired"`
	WinRatePct float64 `json:"win_rate_pct"`
	PnLAvgPct  float64 `json:"pnl_avg_pct"`
	TTLPos     int     `json:"ttl_pos"`
	TTLNeg     int     `json:"ttl_neg"`
	TTLZero    int     `json:"ttl_zero"`
}

// Bucket is one weekday or hour-of-day aggregate.
type Bucket struct {
	N          int     `json:"n"`
	Win        int     `json:"win"`
	WinRatePct float64 `json:"win_rate_pct"`
	PnLAvgPct  float64 `json:"pnl_avg_pct"`
}

// Window is one weekday × hour cell surfaced as a trading-window recommendation.
type Window struct {
	Weekday   string  `json:"dow"`
	Hour      string  `json:"hour"`
	N         int     `json:"n"`
	PnLAvgPct float64 `json:"pnl_avg_pct"`
}

// Summary is the aggregate snapshot persisted each audit cycle.
type Summary struct {
	OK          bool              `json:"ok"`
	UpdatedUTC  string            `json:"updated_utc"`
	OpenCount   int               `json:"open_count"`
	MinSamples  int               `json:"min_samples"`
	Overall     Overall           `json:"overall"`
	ByWeekday   map[string]Bucket `json:"by_dow"`
	ByHour      map[string]Bucket `json:"by_hour"`
	BestWindows []Window          `json:"best_windows"`
}

type cell struct {
	weekday string
	hour    string
	n       int
	pnlSum  float64
}

// Stats recomputes the aggregate snapshot from the entire closed log. Buckets are keyed
// by each position's open timestamp in the given exchange-local zone. Weekday × hour
// cells below minSamples are excluded from the best-window recommendations no matter
// how good they look.
func Stats(closed []Closed, openCount, minSamples int, loc *time.Location, now time.Time) Summary {
	if loc == nil {
		loc = time.UTC
	}
	if minSamples <= 0 {
		minSamples = 1
	}

	var overall Overall
	var pnlSum float64
	byDow := make(map[string]*Bucket)
	byHour := make(map[string]*Bucket)
	combos := make(map[string]*cell)

	for _, c := range closed {
		overall.Total++
		pnlSum += c.PnLPct
		switch c.Result {
		case ResultWin:
			overall.Win++
		case ResultLoss:
			overall.Loss++
		default:
			overall.Expired++
			switch {
			case c.PnLPct > 0:
				overall.TTLPos++
			case c.PnLPct < 0:
				overall.TTLNeg++
			default:
				overall.TTLZero++
			}
		}

		local := c.OpenedAt.In(loc)
		dow := weekdayNames[(int(local.Weekday())+6)%7]
		hour := local.Format("15")

		accumulate(byDow, dow, c)
		accumulate(byHour, hour, c)

		key := dow + "|" + hour
		cl := combos[key]
		if cl == nil {
			cl = &cell{weekday: dow, hour: hour}
			combos[key] = cl
		}
		cl.n++
		cl.pnlSum += c.PnLPct
	}

	if overall.Total > 0 {
		overall.WinRatePct = float64(overall.Win) / float64(overall.Total) * 100
		overall.PnLAvgPct = pnlSum / float64(overall.Total)
	}

	best := make([]Window, 0, len(combos))
	for _, cl := range combos {
		if cl.n < minSamples {
			continue
		}
		best = append(best, Window{
			Weekday:   cl.weekday,
			Hour:      cl.hour,
			N:         cl.n,
			PnLAvgPct: cl.pnlSum / float64(cl.n),
		})
	}
	sort.Slice(best, func(i, j int) bool {
		a, b := best[i], best[j]
		if a.PnLAvgPct != b.PnLAvgPct {
			return a.PnLAvgPct > b.PnLAvgPct
		}
		if a.N != b.N {
			return a.N > b.N
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.Hour < b.Hour
	})
	if len(best) > 8 {
		best = best[:8]
	}

	return Summary{
		OK:          true,
		UpdatedUTC:  now.UTC().Format(time.RFC3339),
		OpenCount:   openCount,
		MinSamples:  minSamples,
		Overall:     overall,
		ByWeekday:   finalize(byDow),
		ByHour:      finalize(byHour),
		BestWindows: best,
	}
}

func accumulate(m map[string]*Bucket, key string, c Closed) {
	b := m[key]
	if b == nil {
		b = &Bucket{}
		m[key] = b
	}
	b.N++
	if c.Result == ResultWin {
		b.Win++
	}
	// PnLAvgPct holds the running sum until finalize divides it.
	b.PnLAvgPct += c.PnLPct
}

func finalize(m map[string]*Bucket) map[string]Bucket {
	out := make(map[string]Bucket, len(m))
	for k, b := range m {
		final := *b
		if final.N > 0 {
			final.WinRatePct = float64(final.Win) / float64(final.N) * 100
			final.PnLAvgPct = final.PnLAvgPct / float64(final.N)
		}
		out[k] = final
	}
	return out
}
