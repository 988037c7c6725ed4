package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// TradeService
// ──────────────────────────────────────────────────────────────────────────────

// TradeService executes all player money operations: spot trades, leveraged
// contracts, and the borrow/repay credit line. Every operation locks the
// user's row with SELECT … FOR UPDATE inside a single transaction, so no two
// money mutations for one user ever interleave — including with the
// settlement pipeline.
type TradeService struct {
	db           *sqlx.DB
	userRepo     *repository.UserRepository
	gameRepo     *repository.GameRepository
	contractRepo *repository.ContractRepository
	script       *ScriptService
	bus          Broadcaster
	logger       *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(
	db *sqlx.DB,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	contractRepo *repository.ContractRepository,
	script *ScriptService,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		db:           db,
		userRepo:     userRepo,
		gameRepo:     gameRepo,
		contractRepo: contractRepo,
		script:       script,
		logger:       logger,
	}
}

// SetBroadcaster injects the WS bus post-construction.
func (s *TradeService) SetBroadcaster(b Broadcaster) { s.bus = b }

// ──────────────────────────────────────────────────────────────────────────────
// Spot trades
// ──────────────────────────────────────────────────────────────────────────────

// BuyStock purchases q shares at the current day's scripted price.
func (s *TradeService) BuyStock(ctx context.Context, userID uuid.UUID, quantity int64) (domain.AssetsSnapshot, error) {
	if quantity < 1 {
		return domain.AssetsSnapshot{}, domain.ErrInvalidInput
	}

	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		price := s.script.PriceAt(g.StateAt(time.Now().UTC()))
		cost := domain.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))
		if u.Cash.LessThan(cost) {
			return domain.ErrInsufficientFunds
		}
		u.Cash = domain.RoundMoney(u.Cash.Sub(cost))
		u.Stocks += quantity
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// SellStock sells q shares at the current day's scripted price.
func (s *TradeService) SellStock(ctx context.Context, userID uuid.UUID, quantity int64) (domain.AssetsSnapshot, error) {
	if quantity < 1 {
		return domain.AssetsSnapshot{}, domain.ErrInvalidInput
	}

	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		if u.Stocks < quantity {
			return domain.ErrInsufficientHoldings
		}
		price := s.script.PriceAt(g.StateAt(time.Now().UTC()))
		proceeds := domain.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))
		u.Cash = domain.RoundMoney(u.Cash.Add(proceeds))
		u.Stocks -= quantity
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Leveraged contracts
// ──────────────────────────────────────────────────────────────────────────────

// OpenContract freezes margin = P·q/leverage and records a one-day order at
// today's price. Leverage bounds are read inside the same transaction.
func (s *TradeService) OpenContract(ctx context.Context, userID uuid.UUID, side domain.ContractSide, quantity int64, leverage int) (domain.AssetsSnapshot, error) {
	if !side.IsValid() {
		return domain.AssetsSnapshot{}, domain.ErrInvalidTradeSide
	}
	if quantity < 1 {
		return domain.AssetsSnapshot{}, domain.ErrInvalidInput
	}

	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		st := g.StateAt(time.Now().UTC())
		if !st.IsStarted || st.CurrentDay < 1 {
			return domain.ErrGameNotRunning
		}
		if leverage < 1 || leverage > g.MaxLeverage {
			return domain.ErrInvalidLeverage
		}

		price := s.script.PriceAt(st)
		margin := domain.ContractMargin(price, quantity, leverage)
		if u.Cash.LessThan(margin) {
			return domain.ErrInsufficientFunds
		}

		order := &domain.ContractOrder{
			ID:         uuid.New(),
			UserID:     userID,
			Day:        st.CurrentDay,
			Side:       side,
			Leverage:   leverage,
			Quantity:   quantity,
			Margin:     margin,
			EntryPrice: price,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.contractRepo.Create(ctx, tx, order); err != nil {
			return err
		}

		u.Cash = domain.RoundMoney(u.Cash.Sub(margin))
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// CancelContracts cancels every open order the user placed today and refunds
// the summed margins in one transaction.
func (s *TradeService) CancelContracts(ctx context.Context, userID uuid.UUID) (domain.AssetsSnapshot, error) {
	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		st := g.StateAt(time.Now().UTC())
		if !st.IsStarted || st.CurrentDay < 1 {
			return domain.ErrGameNotRunning
		}

		orders, err := s.contractRepo.ListOpenByUserAndDayForUpdate(ctx, tx, userID, st.CurrentDay)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return domain.ErrNoOpenContracts
		}

		refund := decimal.Zero
		for i := range orders {
			refund = refund.Add(orders[i].Margin)
		}
		if err := s.contractRepo.CancelOpenByUserAndDay(ctx, tx, userID, st.CurrentDay); err != nil {
			return err
		}

		u.Cash = domain.RoundMoney(u.Cash.Add(refund))
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Credit line
// ──────────────────────────────────────────────────────────────────────────────

// Borrow draws on the daily loan quota: cash, debt, and dailyBorrowed all
// grow by the amount. Requires a running game, checked inside the
// transaction.
func (s *TradeService) Borrow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (domain.AssetsSnapshot, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return domain.AssetsSnapshot{}, domain.ErrInvalidInput
	}

	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		if !g.IsStarted {
			return domain.ErrGameNotRunning
		}
		if u.DailyBorrowed.Add(amount).GreaterThan(g.MaxLoanAmount) {
			return domain.ErrQuotaExceeded
		}

		u.Cash = domain.RoundMoney(u.Cash.Add(amount))
		u.Debt = domain.RoundMoney(u.Debt.Add(amount))
		u.DailyBorrowed = domain.RoundMoney(u.DailyBorrowed.Add(amount))
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// Repay pays down debt from cash; overpayment is clamped to the outstanding
// debt.
func (s *TradeService) Repay(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (domain.AssetsSnapshot, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return domain.AssetsSnapshot{}, domain.ErrInvalidInput
	}

	var snapshot domain.AssetsSnapshot
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error {
		if !g.IsStarted {
			return domain.ErrGameNotRunning
		}
		if u.Cash.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}

		pay := decimal.Min(amount, u.Debt)
		u.Cash = domain.RoundMoney(u.Cash.Sub(pay))
		u.Debt = domain.RoundMoney(u.Debt.Sub(pay))
		snapshot = u.Assets()
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	return snapshot, err
}

// VisitLoanShark bumps the user's visit counter and notifies admin sessions;
// no balances move.
func (s *TradeService) VisitLoanShark(ctx context.Context, userID uuid.UUID) error {
	var count int
	err := s.inUserTx(ctx, userID, func(tx *sqlx.Tx, _ *domain.GameStatus, u *domain.User) error {
		u.LoanSharkVisitCount++
		count = u.LoanSharkVisitCount
		return s.userRepo.UpdateBalances(ctx, tx, u)
	})
	if err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.EmitToAdmins(ws.EventLoanSharkVisit, map[string]any{
			"userId": userID,
			"count":  count,
		})
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transaction helper
// ──────────────────────────────────────────────────────────────────────────────

// inUserTx runs fn inside one transaction holding the user's row lock, with
// the game singleton read from the same snapshot.
func (s *TradeService) inUserTx(ctx context.Context, userID uuid.UUID, fn func(tx *sqlx.Tx, g *domain.GameStatus, u *domain.User) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("trade_service: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	g, err := s.gameRepo.GetInTx(ctx, tx)
	if err != nil {
		return err
	}
	u, err := s.userRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err = fn(tx, g, u); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("trade_service: commit: %w", err)
	}
	return nil
}
