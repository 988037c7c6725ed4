package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// GameRepository handles the persisted game_status singleton.
type GameRepository struct {
	db *sqlx.DB
}

// NewGameRepository creates a new GameRepository.
func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Get returns the singleton row, creating it with factory defaults on first
// read so the server always has a status to work with.
func (r *GameRepository) Get(ctx context.Context) (*domain.GameStatus, error) {
	g, err := r.fetch(ctx, r.db)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game_repo.Get: %w", err)
	}

	if err := r.Seed(ctx, domain.DefaultGameStatus()); err != nil {
		return nil, fmt.Errorf("game_repo.Get: %w", err)
	}
	g, err = r.fetch(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("game_repo.Get refetch: %w", err)
	}
	return g, nil
}

// Seed inserts the singleton row if it does not exist yet. An existing row is
// left untouched, so boot-time defaults never clobber admin-tuned parameters.
func (r *GameRepository) Seed(ctx context.Context, def *domain.GameStatus) error {
	query := `
		INSERT INTO game_status
			(id, is_started, game_start_time, paused_at, time_ratio, total_days,
			 initial_price, initial_cash, max_leverage, daily_interest_rate,
			 max_loan_amount, updated_at)
		VALUES
			(:id, :is_started, :game_start_time, :paused_at, :time_ratio, :total_days,
			 :initial_price, :initial_cash, :max_leverage, :daily_interest_rate,
			 :max_loan_amount, :updated_at)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, def); err != nil {
		return fmt.Errorf("game_repo.Seed: %w", err)
	}
	return nil
}

// GetInTx reads the singleton inside a transaction without taking the row
// lock. Trades use this so parameter reads are consistent with the trade's
// snapshot while lifecycle operations stay serialised on GetForUpdate.
func (r *GameRepository) GetInTx(ctx context.Context, tx *sqlx.Tx) (*domain.GameStatus, error) {
	g, err := r.fetch(ctx, tx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGameNotRunning
		}
		return nil, fmt.Errorf("game_repo.GetInTx: %w", err)
	}
	return g, nil
}

// GetForUpdate locks the singleton inside a transaction. Every lifecycle
// transition takes this lock so admin operations serialise.
func (r *GameRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx) (*domain.GameStatus, error) {
	var g domain.GameStatus
	err := tx.GetContext(ctx, &g,
		`SELECT * FROM game_status WHERE id = $1 FOR UPDATE`, domain.GameStatusID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGameNotRunning
		}
		return nil, fmt.Errorf("game_repo.GetForUpdate: %w", err)
	}
	return &g, nil
}

// Update writes the full singleton back inside a transaction.
func (r *GameRepository) Update(ctx context.Context, tx *sqlx.Tx, g *domain.GameStatus) error {
	query := `
		UPDATE game_status
		SET is_started = :is_started,
		    game_start_time = :game_start_time,
		    paused_at = :paused_at,
		    time_ratio = :time_ratio,
		    total_days = :total_days,
		    initial_price = :initial_price,
		    initial_cash = :initial_cash,
		    max_leverage = :max_leverage,
		    daily_interest_rate = :daily_interest_rate,
		    max_loan_amount = :max_loan_amount,
		    updated_at = now()
		WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("game_repo.Update: %w", err)
	}
	return nil
}

func (r *GameRepository) fetch(ctx context.Context, q sqlx.QueryerContext) (*domain.GameStatus, error) {
	var g domain.GameStatus
	err := sqlx.GetContext(ctx, q, &g,
		`SELECT * FROM game_status WHERE id = $1`, domain.GameStatusID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
