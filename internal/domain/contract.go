package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// ContractSide is the direction of a one-day leveraged contract.
type ContractSide string

const (
	SideLong  ContractSide = "LONG"
	SideShort ContractSide = "SHORT"
)

// IsValid returns true if the side is a recognised direction.
func (s ContractSide) IsValid() bool {
	return s == SideLong || s == SideShort
}

// ──────────────────────────────────────────────────────────────────────────────
// ContractOrder
// ──────────────────────────────────────────────────────────────────────────────

// ContractOrder is a one-day leveraged bet opened at today's price and settled
// against tomorrow's. The margin is frozen at open and returned as part of the
// payout (or in full on cancel). Orders are terminal once settled or
// cancelled and are kept indefinitely for audit.
type ContractOrder struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	UserID      uuid.UUID       `json:"user_id"      db:"user_id"`
	Day         int             `json:"day"          db:"day"`
	Side        ContractSide    `json:"side"         db:"side"`
	Leverage    int             `json:"leverage"     db:"leverage"`
	Quantity    int64           `json:"quantity"     db:"quantity"`
	Margin      decimal.Decimal `json:"margin"       db:"margin"`
	EntryPrice  decimal.Decimal `json:"entry_price"  db:"entry_price"`
	IsSettled   bool            `json:"is_settled"   db:"is_settled"`
	IsCancelled bool            `json:"is_cancelled" db:"is_cancelled"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	SettledAt   *time.Time      `json:"settled_at"   db:"settled_at"`
}

// IsOpen returns true while the order can still be settled or cancelled.
func (o *ContractOrder) IsOpen() bool {
	return !o.IsSettled && !o.IsCancelled
}

// ContractMargin computes the margin required to open a contract:
// price × quantity / leverage, rounded to money precision.
func ContractMargin(price decimal.Decimal, quantity int64, leverage int) decimal.Decimal {
	notional := price.Mul(decimal.NewFromInt(quantity))
	return RoundMoney(notional.Div(decimal.NewFromInt(int64(leverage))))
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement math
// ──────────────────────────────────────────────────────────────────────────────

// ContractSettlement is the outcome of valuing an order at the exit price.
type ContractSettlement struct {
	PnL    decimal.Decimal // pnlPerUnit × quantity × leverage
	Payout decimal.Decimal // margin + PnL; negative payouts become debt
}

// Settle values the order at exitPrice.
//
//	pnlPerUnit = exit − entry  (LONG)   |   entry − exit  (SHORT)
//	payout     = margin + pnlPerUnit × quantity × leverage
//
// A non-negative payout is credited to cash; a negative one is charged to
// debt in full, leaving cash untouched.
func (o *ContractOrder) Settle(exitPrice decimal.Decimal) ContractSettlement {
	pnlPerUnit := exitPrice.Sub(o.EntryPrice)
	if o.Side == SideShort {
		pnlPerUnit = o.EntryPrice.Sub(exitPrice)
	}
	pnl := pnlPerUnit.
		Mul(decimal.NewFromInt(o.Quantity)).
		Mul(decimal.NewFromInt(int64(o.Leverage)))
	pnl = RoundMoney(pnl)
	return ContractSettlement{
		PnL:    pnl,
		Payout: RoundMoney(o.Margin.Add(pnl)),
	}
}
