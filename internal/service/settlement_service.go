package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// assetsFanOutWorkers bounds the concurrent per-user pushes in step 6.
const assetsFanOutWorkers = 8

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService runs the day-boundary pipeline: interest accrual, borrow
// reset, contract settlement, and the price / leaderboard / assets
// broadcasts. A failing order or user is logged and skipped — one bad row
// never aborts the boundary.
type SettlementService struct {
	db           *sqlx.DB
	userRepo     *repository.UserRepository
	gameRepo     *repository.GameRepository
	contractRepo *repository.ContractRepository
	script       *ScriptService
	bus          Broadcaster
	logger       *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	contractRepo *repository.ContractRepository,
	script *ScriptService,
	bus Broadcaster,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		db:           db,
		userRepo:     userRepo,
		gameRepo:     gameRepo,
		contractRepo: contractRepo,
		script:       script,
		bus:          bus,
		logger:       logger,
	}
}

// RunDayBoundary executes the full pipeline for the transition prevDay →
// newDay. Steps run in order; the PRICE_UPDATE broadcast fires strictly after
// every prevDay contract settlement has committed.
func (s *SettlementService) RunDayBoundary(ctx context.Context, prevDay, newDay int) {
	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		s.logger.Error("settlement: read game status failed", "error", err)
		return
	}

	exitPrice := g.InitialPrice
	if d, ok := s.script.Day(newDay); ok {
		exitPrice = d.Price
	} else {
		s.logger.Warn("settlement: no script day, settling at initial price", "day", newDay)
	}

	// ── 1. Interest accrual ──────────────────────────────────────────────────
	if err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.userRepo.ApplyDailyInterest(ctx, tx, g.DailyInterestRate)
	}); err != nil {
		s.logger.Error("settlement: interest accrual failed", "day", newDay, "error", err)
	}

	// ── 2. Daily borrow reset ────────────────────────────────────────────────
	if err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.userRepo.ResetDailyBorrowed(ctx, tx)
	}); err != nil {
		s.logger.Error("settlement: borrow reset failed", "day", newDay, "error", err)
	}

	// ── 3. Contract settlement (per-order transactions) ──────────────────────
	if prevDay >= 1 {
		s.settleContracts(ctx, prevDay, exitPrice)
	}

	// ── 4. Price broadcast ───────────────────────────────────────────────────
	s.bus.Emit(ws.EventPriceUpdate, ws.PriceUpdatePayload{
		Day:     newDay,
		Price:   exitPrice,
		History: s.script.VisibleHistory(newDay),
	})

	// ── 5. Leaderboard broadcast ─────────────────────────────────────────────
	if entries, err := s.userRepo.Leaderboard(ctx, exitPrice); err != nil {
		s.logger.Error("settlement: leaderboard failed", "day", newDay, "error", err)
	} else {
		s.bus.Emit(ws.EventLeaderboardUpdate, ws.LeaderboardPayload{Data: entries})
	}

	// ── 6. Per-user assets fan-out ───────────────────────────────────────────
	s.fanOutAssets(ctx)

	s.logger.Info("day boundary settled", "prev_day", prevDay, "day", newDay, "price", exitPrice)
}

// settleContracts values every still-open prevDay order at exitPrice, one
// transaction per order so a poison row cannot block the rest.
func (s *SettlementService) settleContracts(ctx context.Context, prevDay int, exitPrice decimal.Decimal) {
	orders, err := s.contractRepo.ListOpenByDay(ctx, prevDay)
	if err != nil {
		s.logger.Error("settlement: list open orders failed", "day", prevDay, "error", err)
		return
	}

	for i := range orders {
		if err := s.settleOne(ctx, orders[i].ID, exitPrice); err != nil {
			s.logger.Error("settlement: order skipped",
				"order_id", orders[i].ID, "user_id", orders[i].UserID, "error", err)
		}
	}
}

// settleOne settles a single order inside one transaction that locks the
// order row and the owning user row. Re-reads the order under the lock so a
// concurrent cancel wins cleanly.
func (s *SettlementService) settleOne(ctx context.Context, orderID uuid.UUID, exitPrice decimal.Decimal) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement.settleOne: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err := s.contractRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !order.IsOpen() {
		// Cancelled (or already settled) between listing and locking.
		return tx.Rollback()
	}

	user, err := s.userRepo.GetForUpdate(ctx, tx, order.UserID)
	if err != nil {
		return err
	}

	res := order.Settle(exitPrice)
	if res.Payout.IsNegative() {
		user.Debt = domain.RoundMoney(user.Debt.Add(res.Payout.Abs()))
	} else {
		user.Cash = domain.RoundMoney(user.Cash.Add(res.Payout))
	}

	if err = s.contractRepo.MarkSettled(ctx, tx, order.ID); err != nil {
		return err
	}
	if err = s.userRepo.UpdateBalances(ctx, tx, user); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settlement.settleOne: commit: %w", err)
	}

	s.bus.EmitToUser(order.UserID, ws.EventContractSettled, ws.ContractSettledPayload{
		Type:       order.Side,
		Quantity:   order.Quantity,
		EntryPrice: order.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        res.PnL,
		NewCash:    user.Cash,
		NewDebt:    user.Debt,
	})
	return nil
}

// fanOutAssets pushes a fresh ASSETS_UPDATE to every connected user, a few
// at a time.
func (s *SettlementService) fanOutAssets(ctx context.Context) {
	ids := s.bus.ConnectedUserIDs()
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(assetsFanOutWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			user, err := s.userRepo.GetByID(gctx, id)
			if err != nil {
				s.logger.Warn("settlement: assets push skipped", "user_id", id, "error", err)
				return nil
			}
			s.bus.EmitToUser(id, ws.EventAssetsUpdate, user.Assets())
			return nil
		})
	}
	_ = g.Wait()
}

func (s *SettlementService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settlement: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("settlement: commit: %w", err)
	}
	return nil
}
