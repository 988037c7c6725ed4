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
// GameService — lifecycle + parameter administration
// ──────────────────────────────────────────────────────────────────────────────

// GameService owns the game clock lifecycle (start / stop / resume / restart /
// reset) and the runtime parameters. Every transition locks the game_status
// row so concurrent admin requests serialise.
type GameService struct {
	db           *sqlx.DB
	userRepo     *repository.UserRepository
	gameRepo     *repository.GameRepository
	contractRepo *repository.ContractRepository
	scriptRepo   *repository.ScriptRepository
	script       *ScriptService
	bus          Broadcaster
	logger       *slog.Logger
}

// NewGameService creates a GameService.
func NewGameService(
	db *sqlx.DB,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	contractRepo *repository.ContractRepository,
	scriptRepo *repository.ScriptRepository,
	script *ScriptService,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		db:           db,
		userRepo:     userRepo,
		gameRepo:     gameRepo,
		contractRepo: contractRepo,
		scriptRepo:   scriptRepo,
		script:       script,
		logger:       logger,
	}
}

// SetBroadcaster injects the WS bus post-construction.
func (s *GameService) SetBroadcaster(b Broadcaster) { s.bus = b }

// Status returns the persisted singleton.
func (s *GameService) Status(ctx context.Context) (*domain.GameStatus, error) {
	return s.gameRepo.Get(ctx)
}

// State returns the derived clock view at now.
func (s *GameService) State(ctx context.Context) (domain.GameState, error) {
	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		return domain.GameState{}, err
	}
	return g.StateAt(time.Now().UTC()), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ──────────────────────────────────────────────────────────────────────────────

// Start begins a fresh run from day 1. Requires a non-empty script and a
// stopped clock. News publication flags and per-run counters are cleared in
// the same transaction.
func (s *GameService) Start(ctx context.Context) (domain.GameState, error) {
	if s.script.Len() == 0 {
		return domain.GameState{}, domain.ErrScriptEmpty
	}

	var st domain.GameState
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		if g.IsStarted {
			return domain.ErrGameAlreadyRunning
		}
		now := time.Now().UTC()
		g.IsStarted = true
		g.GameStartTime = &now
		g.PausedAt = nil

		if err := s.scriptRepo.ResetBroadcastFlags(ctx, tx); err != nil {
			return err
		}
		if err := s.userRepo.ResetCounters(ctx, tx); err != nil {
			return err
		}
		if err := s.gameRepo.Update(ctx, tx, g); err != nil {
			return err
		}
		st = g.StateAt(now)
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	if err := s.script.Reload(ctx); err != nil {
		return domain.GameState{}, err
	}
	s.logger.Info("game started", "total_days", st.TotalDays, "time_ratio", st.TimeRatio)
	return st, nil
}

// Stop pauses the clock in place. The pause timestamp lets Resume shift the
// anchor so no in-game time is lost.
func (s *GameService) Stop(ctx context.Context) (domain.GameState, error) {
	var st domain.GameState
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		if !g.IsStarted {
			return domain.ErrGameNotRunning
		}
		now := time.Now().UTC()
		g.IsStarted = false
		g.PausedAt = &now
		if err := s.gameRepo.Update(ctx, tx, g); err != nil {
			return err
		}
		st = g.StateAt(now)
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	s.logger.Info("game stopped", "day", st.CurrentDay)
	return st, nil
}

// Resume continues a paused run. The start anchor shifts forward by the pause
// duration so the current day and its remaining seconds are preserved.
func (s *GameService) Resume(ctx context.Context) (domain.GameState, error) {
	var st domain.GameState
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		if g.PausedAt == nil || g.IsStarted {
			return domain.ErrGameNotPaused
		}
		now := time.Now().UTC()
		if g.GameStartTime != nil {
			shifted := g.GameStartTime.Add(now.Sub(*g.PausedAt))
			g.GameStartTime = &shifted
		}
		g.PausedAt = nil
		g.IsStarted = true
		if err := s.gameRepo.Update(ctx, tx, g); err != nil {
			return err
		}
		st = g.StateAt(now)
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	s.logger.Info("game resumed", "day", st.CurrentDay)
	return st, nil
}

// Restart returns the current run to its pre-start state: every account back
// to initial cash with no stocks, debt, or contracts, the clock unanchored,
// and the script kept but with its news publication flags cleared.
func (s *GameService) Restart(ctx context.Context) (domain.GameState, error) {
	var st domain.GameState
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		if g.IsStarted {
			return domain.ErrGameMustBeStopped
		}
		if err := s.contractRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.userRepo.ResetAllBalances(ctx, tx, g.InitialCash); err != nil {
			return err
		}
		if err := s.userRepo.ResetCounters(ctx, tx); err != nil {
			return err
		}
		if err := s.scriptRepo.ResetBroadcastFlags(ctx, tx); err != nil {
			return err
		}
		g.GameStartTime = nil
		g.PausedAt = nil
		if err := s.gameRepo.Update(ctx, tx, g); err != nil {
			return err
		}
		st = g.StateAt(time.Now().UTC())
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	if err := s.script.Reload(ctx); err != nil {
		return domain.GameState{}, err
	}
	if s.bus != nil {
		s.bus.Emit(ws.EventClearNews, nil)
	}
	s.logger.Info("game restarted")
	return st, nil
}

// Reset is the factory reset: contracts, script, and events are purged, every
// player account except admins and the caller is deleted, surviving accounts
// return to the starting position, and all parameters revert to defaults.
func (s *GameService) Reset(ctx context.Context, currentAdminID uuid.UUID) (domain.GameState, error) {
	var st domain.GameState
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		if g.IsStarted {
			return domain.ErrGameMustBeStopped
		}
		if err := s.contractRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.scriptRepo.DeleteAllDays(ctx, tx); err != nil {
			return err
		}
		if err := s.scriptRepo.DeleteAllEvents(ctx, tx); err != nil {
			return err
		}
		if err := s.userRepo.DeleteAllExcept(ctx, tx, currentAdminID); err != nil {
			return err
		}

		def := domain.DefaultGameStatus()
		if err := s.userRepo.ResetAllBalances(ctx, tx, def.InitialCash); err != nil {
			return err
		}
		if err := s.userRepo.ResetCounters(ctx, tx); err != nil {
			return err
		}
		if err := s.gameRepo.Update(ctx, tx, def); err != nil {
			return err
		}
		st = def.StateAt(time.Now().UTC())
		return nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	if err := s.script.Reload(ctx); err != nil {
		return domain.GameState{}, err
	}
	if s.bus != nil {
		s.bus.Emit(ws.EventClearNews, nil)
	}
	s.logger.Info("game reset to factory defaults", "kept_admin", currentAdminID)
	return st, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Parameters
// ──────────────────────────────────────────────────────────────────────────────

// ParamsUpdate carries the tunables an admin may change at runtime. Nil
// fields are left untouched.
type ParamsUpdate struct {
	TimeRatio         *int64           `json:"time_ratio"`
	TotalDays         *int             `json:"total_days"`
	InitialPrice      *decimal.Decimal `json:"initial_price"`
	InitialCash       *decimal.Decimal `json:"initial_cash"`
	MaxLeverage       *int             `json:"max_leverage"`
	DailyInterestRate *decimal.Decimal `json:"daily_interest_rate"`
	MaxLoanAmount     *decimal.Decimal `json:"max_loan_amount"`
}

// UpdateParams applies a partial parameter update. A time-ratio change rebases
// the clock anchor so the current day and its remaining seconds survive the
// change; loan-facing changes are pushed to every client.
func (s *GameService) UpdateParams(ctx context.Context, p ParamsUpdate) (*domain.GameStatus, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var out *domain.GameStatus
	loanChanged := p.MaxLoanAmount != nil || p.DailyInterestRate != nil
	err := s.inGameTx(ctx, func(tx *sqlx.Tx, g *domain.GameStatus) error {
		now := time.Now().UTC()
		if p.TimeRatio != nil && *p.TimeRatio != g.TimeRatio {
			g.GameStartTime = g.RebasedStartTime(now, *p.TimeRatio)
			g.TimeRatio = *p.TimeRatio
		}
		if p.TotalDays != nil {
			g.TotalDays = *p.TotalDays
		}
		if p.InitialPrice != nil {
			g.InitialPrice = domain.RoundMoney(*p.InitialPrice)
		}
		if p.InitialCash != nil {
			g.InitialCash = domain.RoundMoney(*p.InitialCash)
		}
		if p.MaxLeverage != nil {
			g.MaxLeverage = *p.MaxLeverage
		}
		if p.DailyInterestRate != nil {
			g.DailyInterestRate = *p.DailyInterestRate
		}
		if p.MaxLoanAmount != nil {
			g.MaxLoanAmount = domain.RoundMoney(*p.MaxLoanAmount)
		}
		if err := s.gameRepo.Update(ctx, tx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	if loanChanged && s.bus != nil {
		s.bus.Emit(ws.EventLoanConfigUpdate, map[string]any{
			"maxLoanAmount":     out.MaxLoanAmount,
			"dailyInterestRate": out.DailyInterestRate,
		})
	}
	s.logger.Info("game parameters updated",
		"time_ratio", out.TimeRatio, "total_days", out.TotalDays, "max_leverage", out.MaxLeverage)
	return out, nil
}

func (p ParamsUpdate) validate() error {
	if p.TimeRatio != nil && *p.TimeRatio < 1 {
		return fmt.Errorf("%w: time ratio must be positive", domain.ErrInvalidInput)
	}
	if p.TotalDays != nil && *p.TotalDays < 1 {
		return fmt.Errorf("%w: total days must be positive", domain.ErrInvalidInput)
	}
	if p.InitialPrice != nil && !p.InitialPrice.IsPositive() {
		return fmt.Errorf("%w: initial price must be positive", domain.ErrInvalidInput)
	}
	if p.InitialCash != nil && p.InitialCash.IsNegative() {
		return fmt.Errorf("%w: initial cash must not be negative", domain.ErrInvalidInput)
	}
	if p.MaxLeverage != nil && *p.MaxLeverage < 1 {
		return fmt.Errorf("%w: max leverage must be at least 1", domain.ErrInvalidInput)
	}
	if p.DailyInterestRate != nil &&
		(p.DailyInterestRate.IsNegative() || p.DailyInterestRate.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		return fmt.Errorf("%w: daily interest rate must be in [0, 1)", domain.ErrInvalidInput)
	}
	if p.MaxLoanAmount != nil && p.MaxLoanAmount.IsNegative() {
		return fmt.Errorf("%w: max loan amount must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// inGameTx runs fn inside one transaction holding the game singleton's row
// lock.
func (s *GameService) inGameTx(ctx context.Context, fn func(tx *sqlx.Tx, g *domain.GameStatus) error) (err error) {
	// Seed the row outside the lock on first use.
	if _, err = s.gameRepo.Get(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("game_service: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	g, err := s.gameRepo.GetForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	if err = fn(tx, g); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("game_service: commit: %w", err)
	}
	return nil
}
