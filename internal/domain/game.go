// Package domain defines the core business entities and pure calculation
// logic for the StockSprint market-simulation game server.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Money rounding
// ──────────────────────────────────────────────────────────────────────────────

// MoneyPlaces is the number of decimal places every money field is rounded to
// before it is persisted or compared.
const MoneyPlaces = 2

// RoundMoney applies the single rounding function used on every money write.
// All comparisons against persisted values must go through the same function.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ──────────────────────────────────────────────────────────────────────────────
// GameStatus — persisted singleton (id = 1)
// ──────────────────────────────────────────────────────────────────────────────

// GameStatusID is the primary key of the one-and-only game_status row.
const GameStatusID = 1

// Default game parameters, restored on factory reset.
const (
	DefaultTimeRatio         = 300 // real seconds per in-game day
	DefaultTotalDays         = 120
	DefaultMaxLeverage       = 10
	DefaultInitialPrice      = "100.00"
	DefaultInitialCash       = "10000.00"
	DefaultDailyInterestRate = "0.001"
	DefaultMaxLoanAmount     = "5000.00"
)

// GameStatus is the persisted singleton holding the clock anchor and every
// tunable game parameter.
type GameStatus struct {
	ID                int             `json:"id"                  db:"id"`
	IsStarted         bool            `json:"is_started"          db:"is_started"`
	GameStartTime     *time.Time      `json:"game_start_time"     db:"game_start_time"`
	PausedAt          *time.Time      `json:"paused_at"           db:"paused_at"`
	TimeRatio         int64           `json:"time_ratio"          db:"time_ratio"` // real seconds per day
	TotalDays         int             `json:"total_days"          db:"total_days"`
	InitialPrice      decimal.Decimal `json:"initial_price"       db:"initial_price"`
	InitialCash       decimal.Decimal `json:"initial_cash"        db:"initial_cash"`
	MaxLeverage       int             `json:"max_leverage"        db:"max_leverage"`
	DailyInterestRate decimal.Decimal `json:"daily_interest_rate" db:"daily_interest_rate"`
	MaxLoanAmount     decimal.Decimal `json:"max_loan_amount"     db:"max_loan_amount"`
	UpdatedAt         time.Time       `json:"updated_at"          db:"updated_at"`
}

// DefaultGameStatus returns the factory-default singleton row.
func DefaultGameStatus() *GameStatus {
	return &GameStatus{
		ID:                GameStatusID,
		IsStarted:         false,
		TimeRatio:         DefaultTimeRatio,
		TotalDays:         DefaultTotalDays,
		InitialPrice:      decimal.RequireFromString(DefaultInitialPrice),
		InitialCash:       decimal.RequireFromString(DefaultInitialCash),
		MaxLeverage:       DefaultMaxLeverage,
		DailyInterestRate: decimal.RequireFromString(DefaultDailyInterestRate),
		MaxLoanAmount:     decimal.RequireFromString(DefaultMaxLoanAmount),
		UpdatedAt:         time.Now().UTC(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// GameState — derived clock view
// ──────────────────────────────────────────────────────────────────────────────

// GameState is the instantaneous, derived view of the game clock plus the
// parameters clients need. It is never persisted.
type GameState struct {
	IsStarted         bool            `json:"is_started"`
	IsPaused          bool            `json:"is_paused"`
	CurrentDay        int             `json:"current_day"`
	SecondInDay       int64           `json:"second_in_day"`
	SecondsToNextDay  int64           `json:"seconds_to_next_day"`
	TotalDays         int             `json:"total_days"`
	TimeRatio         int64           `json:"time_ratio"`
	InitialPrice      decimal.Decimal `json:"initial_price"`
	InitialCash       decimal.Decimal `json:"initial_cash"`
	MaxLeverage       int             `json:"max_leverage"`
	DailyInterestRate decimal.Decimal `json:"daily_interest_rate"`
	MaxLoanAmount     decimal.Decimal `json:"max_loan_amount"`
}

// StateAt derives the clock view at the given instant.
//
// The reference time is PausedAt while paused (the clock freezes), otherwise
// now. A game that has never been started reports day 0. CurrentDay is
// clamped to TotalDays; once the final day's window has elapsed the countdown
// reports 0.
func (g *GameStatus) StateAt(now time.Time) GameState {
	st := GameState{
		IsStarted:         g.IsStarted,
		IsPaused:          g.PausedAt != nil,
		TotalDays:         g.TotalDays,
		TimeRatio:         g.TimeRatio,
		InitialPrice:      g.InitialPrice,
		InitialCash:       g.InitialCash,
		MaxLeverage:       g.MaxLeverage,
		DailyInterestRate: g.DailyInterestRate,
		MaxLoanAmount:     g.MaxLoanAmount,
	}
	if g.GameStartTime == nil || g.TimeRatio <= 0 {
		return st
	}

	ref := now
	if g.PausedAt != nil {
		ref = *g.PausedAt
	}
	elapsed := int64(ref.Sub(*g.GameStartTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	day := int(elapsed/g.TimeRatio) + 1
	st.SecondInDay = elapsed % g.TimeRatio
	st.SecondsToNextDay = g.TimeRatio - st.SecondInDay

	if day >= g.TotalDays {
		st.CurrentDay = g.TotalDays
		if day > g.TotalDays {
			// Run is over; freeze the countdown.
			st.SecondsToNextDay = 0
		}
		return st
	}
	st.CurrentDay = day
	return st
}

// RebasedStartTime computes the new GameStartTime after TimeRatio changes,
// preserving the current in-game day and the remaining seconds within it.
//
// If the new ratio is shorter than the remaining seconds, the remainder is
// truncated to newRatio−1 so the next rollover is imminent but never skipped.
// Returns nil when the game has no start time (nothing to rebase).
func (g *GameStatus) RebasedStartTime(now time.Time, newRatio int64) *time.Time {
	if g.GameStartTime == nil || newRatio <= 0 {
		return nil
	}
	st := g.StateAt(now)
	day := st.CurrentDay
	if day < 1 {
		day = 1
	}

	remaining := st.SecondsToNextDay
	if remaining > newRatio {
		remaining = newRatio - 1
	}

	ref := now
	if g.PausedAt != nil {
		ref = *g.PausedAt
	}
	// elapsed' reproduces (day, remaining) under the new ratio.
	elapsed := int64(day-1)*newRatio + (newRatio - remaining)
	start := ref.Add(-time.Duration(elapsed) * time.Second)
	return &start
}
