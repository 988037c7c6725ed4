package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ── Margin math ───────────────────────────────────────────────────────────────

func TestContractMargin(t *testing.T) {
	// 100.00 × 10 / 4 = 250.00
	got := domain.ContractMargin(decimal.RequireFromString("100.00"), 10, 4)
	if !got.Equal(decimal.RequireFromString("250.00")) {
		t.Errorf("ContractMargin = %s, want 250.00", got)
	}

	// Rounded to money precision: 99.99 × 7 / 3 = 233.31
	got = domain.ContractMargin(decimal.RequireFromString("99.99"), 7, 3)
	if !got.Equal(decimal.RequireFromString("233.31")) {
		t.Errorf("ContractMargin = %s, want 233.31", got)
	}
}

// ── Settlement math ───────────────────────────────────────────────────────────

// TestContractSettle_LongProfit replays the winning long:
//
//	entry 100, exit 104, qty 10, leverage 5, margin 200
//	pnl    = (104−100) × 10 × 5 = 200
//	payout = 200 + 200          = 400
func TestContractSettle_LongProfit(t *testing.T) {
	o := &domain.ContractOrder{
		Side:       domain.SideLong,
		Leverage:   5,
		Quantity:   10,
		Margin:     decimal.RequireFromString("200.00"),
		EntryPrice: decimal.RequireFromString("100.00"),
	}
	s := o.Settle(decimal.RequireFromString("104.00"))
	if !s.PnL.Equal(decimal.RequireFromString("200.00")) {
		t.Errorf("PnL = %s, want 200.00", s.PnL)
	}
	if !s.Payout.Equal(decimal.RequireFromString("400.00")) {
		t.Errorf("Payout = %s, want 400.00", s.Payout)
	}
}

// TestContractSettle_LongWipeout: the losing long whose deficit becomes debt.
//
//	entry 100, exit 94, qty 10, leverage 5, margin 200
//	pnl    = (94−100) × 10 × 5 = −300
//	payout = 200 − 300         = −100  → 100 of new debt, cash untouched
func TestContractSettle_LongWipeout(t *testing.T) {
	o := &domain.ContractOrder{
		Side:       domain.SideLong,
		Leverage:   5,
		Quantity:   10,
		Margin:     decimal.RequireFromString("200.00"),
		EntryPrice: decimal.RequireFromString("100.00"),
	}
	s := o.Settle(decimal.RequireFromString("94.00"))
	if !s.Payout.Equal(decimal.RequireFromString("-100.00")) {
		t.Errorf("Payout = %s, want -100.00", s.Payout)
	}
	if !s.Payout.IsNegative() {
		t.Error("wipeout payout must be negative (charged as debt)")
	}
}

func TestContractSettle_ShortMirrors(t *testing.T) {
	o := &domain.ContractOrder{
		Side:       domain.SideShort,
		Leverage:   5,
		Quantity:   10,
		Margin:     decimal.RequireFromString("200.00"),
		EntryPrice: decimal.RequireFromString("100.00"),
	}
	// Price drops: short profits exactly like the symmetric long gain.
	s := o.Settle(decimal.RequireFromString("96.00"))
	if !s.PnL.Equal(decimal.RequireFromString("200.00")) {
		t.Errorf("short PnL = %s, want 200.00", s.PnL)
	}
	// Price rises: mirrored loss.
	s = o.Settle(decimal.RequireFromString("104.00"))
	if !s.PnL.Equal(decimal.RequireFromString("-200.00")) {
		t.Errorf("short PnL = %s, want -200.00", s.PnL)
	}
}

func TestContractSettle_FlatPriceReturnsMargin(t *testing.T) {
	o := &domain.ContractOrder{
		Side:       domain.SideLong,
		Leverage:   10,
		Quantity:   3,
		Margin:     decimal.RequireFromString("30.00"),
		EntryPrice: decimal.RequireFromString("100.00"),
	}
	s := o.Settle(decimal.RequireFromString("100.00"))
	if !s.Payout.Equal(o.Margin) {
		t.Errorf("flat settle payout = %s, want margin %s", s.Payout, o.Margin)
	}
}

// ── Order state ───────────────────────────────────────────────────────────────

func TestContractOrder_IsOpen(t *testing.T) {
	o := &domain.ContractOrder{}
	if !o.IsOpen() {
		t.Error("fresh order should be open")
	}
	o.IsSettled = true
	if o.IsOpen() {
		t.Error("settled order should not be open")
	}
	o = &domain.ContractOrder{IsCancelled: true}
	if o.IsOpen() {
		t.Error("cancelled order should not be open")
	}
}

func TestContractSide_IsValid(t *testing.T) {
	if !domain.SideLong.IsValid() || !domain.SideShort.IsValid() {
		t.Error("LONG and SHORT should be valid")
	}
	if domain.ContractSide("SIDEWAYS").IsValid() {
		t.Error("SIDEWAYS should not be valid")
	}
}
