package domain_test

import (
	"testing"
	"time"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

func statusStartedAt(start time.Time, ratio int64, totalDays int) *domain.GameStatus {
	g := domain.DefaultGameStatus()
	g.IsStarted = true
	g.GameStartTime = &start
	g.TimeRatio = ratio
	g.TotalDays = totalDays
	return g
}

// ── Clock derivation ──────────────────────────────────────────────────────────

func TestStateAt_NeverStarted(t *testing.T) {
	g := domain.DefaultGameStatus()
	st := g.StateAt(time.Now().UTC())
	if st.IsStarted || st.CurrentDay != 0 {
		t.Errorf("fresh game should report day 0, got started=%v day=%d",
			st.IsStarted, st.CurrentDay)
	}
}

// TestStateAt_DayDerivation checks currentDay = floor(elapsed/ratio) + 1.
//
//	ratio=300: t=0s → day 1, t=299s → day 1, t=300s → day 2, t=750s → day 3
func TestStateAt_DayDerivation(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 300, 120)

	cases := []struct {
		elapsed int64
		day     int
		inDay   int64
		toNext  int64
	}{
		{0, 1, 0, 300},
		{299, 1, 299, 1},
		{300, 2, 0, 300},
		{750, 3, 150, 150},
	}
	for _, c := range cases {
		st := g.StateAt(start.Add(time.Duration(c.elapsed) * time.Second))
		if st.CurrentDay != c.day {
			t.Errorf("elapsed=%ds: CurrentDay = %d, want %d", c.elapsed, st.CurrentDay, c.day)
		}
		if st.SecondInDay != c.inDay {
			t.Errorf("elapsed=%ds: SecondInDay = %d, want %d", c.elapsed, st.SecondInDay, c.inDay)
		}
		if st.SecondsToNextDay != c.toNext {
			t.Errorf("elapsed=%ds: SecondsToNextDay = %d, want %d", c.elapsed, st.SecondsToNextDay, c.toNext)
		}
	}
}

func TestStateAt_ClampedToTotalDays(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 10, 5)

	// Day 5 window: elapsed in [40, 50). Still counting down.
	st := g.StateAt(start.Add(42 * time.Second))
	if st.CurrentDay != 5 || st.SecondsToNextDay != 8 {
		t.Errorf("within final day: day=%d toNext=%d, want 5/8", st.CurrentDay, st.SecondsToNextDay)
	}

	// Past the end the day stays clamped and the countdown freezes at 0.
	st = g.StateAt(start.Add(500 * time.Second))
	if st.CurrentDay != 5 {
		t.Errorf("past end: CurrentDay = %d, want 5", st.CurrentDay)
	}
	if st.SecondsToNextDay != 0 {
		t.Errorf("past end: SecondsToNextDay = %d, want 0", st.SecondsToNextDay)
	}
}

// TestStateAt_PauseFreezesClock: while paused the derived state is computed
// against pausedAt, so it is identical no matter how much real time passes.
func TestStateAt_PauseFreezesClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 300, 120)
	paused := start.Add(456 * time.Second)
	g.PausedAt = &paused

	a := g.StateAt(paused.Add(1 * time.Second))
	b := g.StateAt(paused.Add(9 * time.Hour))
	if !a.IsPaused || !b.IsPaused {
		t.Fatal("expected IsPaused")
	}
	if a.CurrentDay != b.CurrentDay || a.SecondInDay != b.SecondInDay {
		t.Errorf("paused state drifted: %+v vs %+v", a, b)
	}
	if a.CurrentDay != 2 || a.SecondInDay != 156 {
		t.Errorf("paused at 456s: day=%d inDay=%d, want 2/156", a.CurrentDay, a.SecondInDay)
	}
}

// ── TimeRatio rebase ──────────────────────────────────────────────────────────

// TestRebasedStartTime_PreservesDayAndRemaining: changing the ratio must not
// move the player to another day nor change the seconds left in this one.
//
//	ratio 300 → 600 at day 3, 150s elapsed in day (150s remaining):
//	the rebased clock must still read day 3 with 150s remaining.
func TestRebasedStartTime_PreservesDayAndRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 300, 120)
	now := start.Add(750 * time.Second) // day 3, 150 in, 150 to next

	newStart := g.RebasedStartTime(now, 600)
	if newStart == nil {
		t.Fatal("expected a rebased start time")
	}
	g.GameStartTime = newStart
	g.TimeRatio = 600

	st := g.StateAt(now)
	if st.CurrentDay != 3 {
		t.Errorf("CurrentDay = %d, want 3", st.CurrentDay)
	}
	if st.SecondsToNextDay != 150 {
		t.Errorf("SecondsToNextDay = %d, want 150", st.SecondsToNextDay)
	}
}

// TestRebasedStartTime_TruncatesRemaining: shrinking the ratio below the
// remaining seconds truncates the remainder to newRatio−1 rather than
// skipping a day.
func TestRebasedStartTime_TruncatesRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 300, 120)
	now := start.Add(610 * time.Second) // day 3, 10 in, 290 to next

	newStart := g.RebasedStartTime(now, 60)
	if newStart == nil {
		t.Fatal("expected a rebased start time")
	}
	g.GameStartTime = newStart
	g.TimeRatio = 60

	st := g.StateAt(now)
	if st.CurrentDay != 3 {
		t.Errorf("CurrentDay = %d, want 3 (day must not jump)", st.CurrentDay)
	}
	if st.SecondsToNextDay != 59 {
		t.Errorf("SecondsToNextDay = %d, want 59", st.SecondsToNextDay)
	}
}

func TestRebasedStartTime_WhilePaused(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := statusStartedAt(start, 300, 120)
	paused := start.Add(450 * time.Second) // day 2, 150 remaining
	g.PausedAt = &paused

	// Real "now" is far past the pause; the rebase anchors on pausedAt.
	now := paused.Add(2 * time.Hour)
	newStart := g.RebasedStartTime(now, 600)
	if newStart == nil {
		t.Fatal("expected a rebased start time")
	}
	g.GameStartTime = newStart
	g.TimeRatio = 600

	st := g.StateAt(now)
	if st.CurrentDay != 2 || st.SecondsToNextDay != 150 {
		t.Errorf("paused rebase: day=%d toNext=%d, want 2/150", st.CurrentDay, st.SecondsToNextDay)
	}
}

func TestRebasedStartTime_NoStart(t *testing.T) {
	g := domain.DefaultGameStatus()
	if got := g.RebasedStartTime(time.Now().UTC(), 600); got != nil {
		t.Errorf("unstarted game should rebase to nil, got %v", got)
	}
}
