package domain_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

func genScript(seed int64, events []domain.Event, totalDays int) []domain.ScriptDay {
	return domain.GenerateScript(
		events,
		domain.DefaultGeneratorParams(),
		totalDays,
		decimal.RequireFromString("100.00"),
		300,
		rand.New(rand.NewSource(seed)),
	)
}

// ── Generator shape ───────────────────────────────────────────────────────────

func TestGenerateScript_CoversEveryDay(t *testing.T) {
	days := genScript(1, nil, 30)
	if len(days) != 30 {
		t.Fatalf("len = %d, want 30", len(days))
	}
	for i, d := range days {
		if d.Day != i+1 {
			t.Errorf("days[%d].Day = %d, want %d", i, d.Day, i+1)
		}
		if d.Price.LessThan(decimal.NewFromInt(1)) {
			t.Errorf("day %d price %s below floor", d.Day, d.Price)
		}
		if d.Price.Exponent() < -2 {
			t.Errorf("day %d price %s not rounded to 2 places", d.Day, d.Price)
		}
		if d.IsBroadcasted {
			t.Errorf("day %d generated pre-broadcast", d.Day)
		}
	}
}

func TestGenerateScript_DeterministicForSeed(t *testing.T) {
	events := []domain.Event{
		{Day: 5, Title: "Merger rumour", Trend: domain.TrendStrongUp},
	}
	a := genScript(99, events, 60)
	b := genScript(99, events, 60)
	for i := range a {
		if !a[i].Price.Equal(b[i].Price) {
			t.Fatalf("day %d: %s vs %s — same seed must reproduce the series",
				a[i].Day, a[i].Price, b[i].Price)
		}
	}
	c := genScript(100, events, 60)
	same := true
	for i := range a {
		if !a[i].Price.Equal(c[i].Price) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced an identical series")
	}
}

// ── Event semantics ───────────────────────────────────────────────────────────

// TestGenerateScript_EventAffectsNextDay: an event on day d sets the trend
// prices feel from day d+1; the day-d row records the trend that was in
// force while its own price was computed.
func TestGenerateScript_EventAffectsNextDay(t *testing.T) {
	events := []domain.Event{
		{Day: 10, Title: "Crash", Trend: domain.TrendStrongDown},
	}
	days := genScript(3, events, 20)

	if days[9].EffectiveTrend != domain.TrendFlat {
		t.Errorf("day 10 effective trend = %s, want FLAT (event not yet felt)",
			days[9].EffectiveTrend)
	}
	if days[10].EffectiveTrend != domain.TrendStrongDown {
		t.Errorf("day 11 effective trend = %s, want STRONG_DOWN", days[10].EffectiveTrend)
	}
}

func TestGenerateScript_LastEventOnDayWins(t *testing.T) {
	events := []domain.Event{
		{Day: 4, Title: "First", Trend: domain.TrendStrongUp},
		{Day: 4, Title: "Second", Trend: domain.TrendStrongDown},
	}
	days := genScript(5, events, 10)
	if days[3].Title == nil || *days[3].Title != "Second" {
		t.Errorf("day 4 headline = %v, want the last event's title", days[3].Title)
	}
	if days[4].EffectiveTrend != domain.TrendStrongDown {
		t.Errorf("day 5 trend = %s, want STRONG_DOWN", days[4].EffectiveTrend)
	}
}

func TestGenerateScript_NoEffectPublishesWithoutTrend(t *testing.T) {
	events := []domain.Event{
		{Day: 3, Title: "Colour piece", Trend: domain.TrendNoEffect},
	}
	days := genScript(8, events, 10)
	d := days[2]
	if d.Title == nil || d.PublishOffset == nil {
		t.Fatal("NO_EFFECT event must still carry a publishable headline")
	}
	if *d.PublishOffset < 0 || *d.PublishOffset >= 300 {
		t.Errorf("publish offset %d outside [0, timeRatio)", *d.PublishOffset)
	}
	if days[3].EffectiveTrend != domain.TrendFlat {
		t.Errorf("day 4 trend = %s, NO_EFFECT must not change the trend state",
			days[3].EffectiveTrend)
	}
}

func TestGenerateScript_SilentDaysHaveNoOffset(t *testing.T) {
	days := genScript(11, nil, 15)
	for _, d := range days {
		if d.Title != nil || d.PublishOffset != nil {
			t.Errorf("day %d should be silent", d.Day)
		}
		if d.HasNews() {
			t.Errorf("day %d HasNews() on a silent day", d.Day)
		}
	}
}

// TestGenerateScript_TrendDecays: after a STRONG_UP event the drift shrinks
// day over day; far from the event the series behaves like FLAT plus drift.
// With noise bounded by ±0.4 × tdc = ±0.02, a full-strength up day moves the
// price by at least (0.05 − 0.02) ≈ +3% of itself minus nothing, so the first
// post-event day must close above its predecessor.
func TestGenerateScript_TrendDecays(t *testing.T) {
	events := []domain.Event{
		{Day: 2, Title: "Boom", Trend: domain.TrendStrongUp},
	}
	days := genScript(21, events, 12)
	if !days[2].Price.GreaterThan(days[1].Price) {
		t.Errorf("day 3 (%s) should close above day 2 (%s) under fresh STRONG_UP",
			days[2].Price, days[1].Price)
	}
}

// ── History projection ────────────────────────────────────────────────────────

func TestHistoryEntry_HidesUnbroadcastHeadline(t *testing.T) {
	title := "Scoop"
	news := "Long form"
	d := domain.ScriptDay{
		Day:            7,
		Price:          decimal.RequireFromString("123.45"),
		Title:          &title,
		News:           &news,
		EffectiveTrend: domain.TrendUp,
	}
	e := d.HistoryEntry()
	if e.Title != nil || e.News != nil {
		t.Error("headline must stay hidden until broadcast")
	}
	if !e.Price.Equal(d.Price) || e.Day != 7 {
		t.Errorf("price/day must always be visible: %+v", e)
	}

	d.IsBroadcasted = true
	e = d.HistoryEntry()
	if e.Title == nil || *e.Title != title {
		t.Error("broadcast headline must be visible")
	}
}

func TestTrend_IsValid(t *testing.T) {
	for _, tr := range []domain.Trend{
		domain.TrendStrongUp, domain.TrendUp, domain.TrendFlat,
		domain.TrendDown, domain.TrendStrongDown, domain.TrendNoEffect,
	} {
		if !tr.IsValid() {
			t.Errorf("%s should be valid", tr)
		}
	}
	if domain.Trend("MOON").IsValid() {
		t.Error("MOON should not be valid")
	}
}
