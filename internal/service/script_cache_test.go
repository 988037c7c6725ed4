package service

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// newCachedScript builds a ScriptService with a pre-populated cache, skipping
// the store round trip.
func newCachedScript(days []domain.ScriptDay) *ScriptService {
	s := NewScriptService(nil, nil, slog.Default())
	s.days = days
	for i := range days {
		s.byDay[days[i].Day] = i
	}
	return s
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func testDays() []domain.ScriptDay {
	return []domain.ScriptDay{
		{Day: 1, Price: decimal.NewFromInt(100), EffectiveTrend: domain.TrendFlat},
		{
			Day: 2, Price: decimal.NewFromInt(110), EffectiveTrend: domain.TrendUp,
			Title: strPtr("Breakthrough"), News: strPtr("Details"),
			PublishOffset: int64Ptr(30), IsBroadcasted: true,
		},
		{
			Day: 3, Price: decimal.NewFromInt(95), EffectiveTrend: domain.TrendDown,
			Title: strPtr("Scandal"), News: strPtr("More details"),
			PublishOffset: int64Ptr(10), // not yet broadcast
		},
		{Day: 4, Price: decimal.NewFromInt(97), EffectiveTrend: domain.TrendFlat},
	}
}

func TestPriceAt_UsesScriptedDayPrice(t *testing.T) {
	s := newCachedScript(testDays())
	st := domain.GameState{CurrentDay: 2, InitialPrice: decimal.NewFromInt(100)}
	require.True(t, s.PriceAt(st).Equal(decimal.NewFromInt(110)))
}

func TestPriceAt_FallsBackToInitialPrice(t *testing.T) {
	s := newCachedScript(testDays())

	// Day 0: the game has not started.
	st := domain.GameState{CurrentDay: 0, InitialPrice: decimal.NewFromInt(100)}
	require.True(t, s.PriceAt(st).Equal(decimal.NewFromInt(100)))

	// A day past the end of the script.
	st.CurrentDay = 99
	require.True(t, s.PriceAt(st).Equal(decimal.NewFromInt(100)))
}

func TestVisibleHistory_ClampsToCurrentDay(t *testing.T) {
	s := newCachedScript(testDays())

	hist := s.VisibleHistory(3)
	require.Len(t, hist, 3)
	require.Equal(t, 1, hist[0].Day)
	require.Equal(t, 3, hist[2].Day)
}

func TestVisibleHistory_HidesUnbroadcastHeadlines(t *testing.T) {
	s := newCachedScript(testDays())

	hist := s.VisibleHistory(4)
	require.Len(t, hist, 4)

	// Day 2 was broadcast: headline visible. Day 3 was not: price only.
	require.NotNil(t, hist[1].Title)
	require.Equal(t, "Breakthrough", *hist[1].Title)
	require.Nil(t, hist[2].Title)
	require.Nil(t, hist[2].News)
}

func TestVisibleNews_OnlyBroadcastHeadlines(t *testing.T) {
	s := newCachedScript(testDays())

	news := s.VisibleNews(4)
	require.Len(t, news, 1)
	require.Equal(t, 2, news[0].Day)
	require.Equal(t, "Breakthrough", *news[0].Title)
}

func TestVisibleNews_ExcludesFutureDays(t *testing.T) {
	s := newCachedScript(testDays())
	require.Empty(t, s.VisibleNews(1))
}

func TestDay_MissLeavesCacheUntouched(t *testing.T) {
	s := newCachedScript(testDays())

	_, ok := s.Day(42)
	require.False(t, ok)
	require.Equal(t, 4, s.Len())

	d, ok := s.Day(3)
	require.True(t, ok)
	require.True(t, d.HasNews())
	require.False(t, d.IsBroadcasted)
}
