package domain

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Trend
// ──────────────────────────────────────────────────────────────────────────────

// Trend is an opaque directional tag attached to a scripted event. The tags
// are fixed by configuration; only TrendStrength interprets them.
type Trend string

const (
	TrendStrongUp   Trend = "STRONG_UP"
	TrendUp         Trend = "UP"
	TrendFlat       Trend = "FLAT"
	TrendDown       Trend = "DOWN"
	TrendStrongDown Trend = "STRONG_DOWN"
	TrendNoEffect   Trend = "NO_EFFECT"
)

// TrendStrength maps each trend tag to its coefficient on the daily target
// change. NO_EFFECT is deliberately absent: such events publish news without
// touching the price path.
var TrendStrength = map[Trend]float64{
	TrendStrongUp:   1.0,
	TrendUp:         0.5,
	TrendFlat:       0,
	TrendDown:       -0.5,
	TrendStrongDown: -1.0,
}

// IsValid returns true for a recognised trend tag.
func (t Trend) IsValid() bool {
	if t == TrendNoEffect {
		return true
	}
	_, ok := TrendStrength[t]
	return ok
}

// ──────────────────────────────────────────────────────────────────────────────
// Event — script generator input
// ──────────────────────────────────────────────────────────────────────────────

// Event is an admin-authored, trend-bearing headline scheduled for a day.
// Days need not be unique; when several events land on one day the last one
// in order wins the trend and the headline.
type Event struct {
	ID        int64     `json:"id"         db:"id"`
	Day       int       `json:"day"        db:"day"`
	Title     string    `json:"title"      db:"title"`
	News      *string   `json:"news"       db:"news"`
	Trend     Trend     `json:"trend"      db:"trend"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ScriptDay
// ──────────────────────────────────────────────────────────────────────────────

// ScriptDay is one row of the deterministic price/news timeline. Days with a
// nil Title are silent; otherwise Title, News and PublishOffset form a
// complete publication tuple. IsBroadcasted is monotone within a run and
// reset on start/restart.
type ScriptDay struct {
	Day            int             `json:"day"             db:"day"`
	Price          decimal.Decimal `json:"price"           db:"price"`
	Title          *string         `json:"title"           db:"title"`
	News           *string         `json:"news"            db:"news"`
	EffectiveTrend Trend           `json:"effective_trend" db:"effective_trend"`
	PublishOffset  *int64          `json:"publish_offset"  db:"publish_offset"` // second within the day, [0, timeRatio)
	IsBroadcasted  bool            `json:"is_broadcasted"  db:"is_broadcasted"`
}

// HasNews returns true when the day carries a publishable headline.
func (d *ScriptDay) HasNews() bool {
	return d.Title != nil && d.PublishOffset != nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Script generator
// ──────────────────────────────────────────────────────────────────────────────

// GeneratorParams tunes the decaying-trend price model.
type GeneratorParams struct {
	TargetDailyChange float64 // magnitude of a full-strength daily move
	BullDrift         float64 // constant additive upward drift per day
	Decay             float64 // per-day multiplier applied to the trend ratio
}

// DefaultGeneratorParams returns the production tuning.
func DefaultGeneratorParams() GeneratorParams {
	return GeneratorParams{
		TargetDailyChange: 0.05,
		BullDrift:         0.1,
		Decay:             0.9,
	}
}

// minScriptPrice is the floor the generated price is clamped to.
var minScriptPrice = decimal.NewFromInt(1)

// GenerateScript produces the full 1..totalDays price series from the
// scheduled events using a decaying trend + bounded noise + bull drift model.
//
// An event landing on day d sets the trend state that prices feel from day
// d+1 onward; the day's own ScriptDay records the trend that was effective
// while its price was computed. The rng is injected so callers can fix a
// seed for reproducible series.
func GenerateScript(
	events []Event,
	p GeneratorParams,
	totalDays int,
	initialPrice decimal.Decimal,
	timeRatio int64,
	rng *rand.Rand,
) []ScriptDay {
	// Index events by day, preserving order so later entries override.
	byDay := make(map[int][]Event, len(events))
	for _, ev := range events {
		byDay[ev.Day] = append(byDay[ev.Day], ev)
	}

	price := initialPrice
	trendRatio := 0.0
	trendName := TrendFlat

	days := make([]ScriptDay, 0, totalDays)
	for day := 1; day <= totalDays; day++ {
		// Precompute tomorrow's trend state: decay, then let today's events
		// (if any) override it.
		nextRatio := trendRatio * p.Decay
		nextName := trendName

		var headline *Event
		for i := range byDay[day] {
			ev := &byDay[day][i]
			headline = ev
			if ev.Trend != TrendNoEffect {
				nextName = ev.Trend
				nextRatio = TrendStrength[ev.Trend]
			}
		}

		// Today's price update under the *current* trend state.
		noise := (rng.Float64()*0.8 - 0.4) * p.TargetDailyChange
		factor := 1 + p.TargetDailyChange*trendRatio + noise
		price = price.Mul(decimal.NewFromFloat(factor)).
			Add(decimal.NewFromFloat(p.BullDrift))
		if price.LessThan(minScriptPrice) {
			price = minScriptPrice
		}
		price = RoundMoney(price)

		sd := ScriptDay{
			Day:            day,
			Price:          price,
			EffectiveTrend: trendName,
		}
		if headline != nil {
			title := headline.Title
			sd.Title = &title
			sd.News = headline.News
			offset := rng.Int63n(timeRatio)
			sd.PublishOffset = &offset
		}
		days = append(days, sd)

		trendRatio = nextRatio
		trendName = nextName
	}
	return days
}

// ──────────────────────────────────────────────────────────────────────────────
// History views
// ──────────────────────────────────────────────────────────────────────────────

// PriceHistoryEntry is one element of the PRICE_UPDATE / FULL_SYNC history:
// the price is always visible, the headline only once broadcast.
type PriceHistoryEntry struct {
	Day            int             `json:"day"`
	Price          decimal.Decimal `json:"price"`
	Title          *string         `json:"title,omitempty"`
	News           *string         `json:"news,omitempty"`
	EffectiveTrend Trend           `json:"effective_trend"`
}

// HistoryEntry derives the client-visible view of the day, hiding the
// headline until it has been broadcast.
func (d *ScriptDay) HistoryEntry() PriceHistoryEntry {
	e := PriceHistoryEntry{
		Day:            d.Day,
		Price:          d.Price,
		EffectiveTrend: d.EffectiveTrend,
	}
	if d.IsBroadcasted {
		e.Title = d.Title
		e.News = d.News
	}
	return e
}
