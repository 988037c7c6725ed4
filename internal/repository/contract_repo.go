package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ContractRepository handles leveraged contract orders.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a new order inside the open-contract transaction.
func (r *ContractRepository) Create(ctx context.Context, tx *sqlx.Tx, o *domain.ContractOrder) error {
	query := `
		INSERT INTO contract_orders
			(id, user_id, day, side, leverage, quantity, margin, entry_price,
			 is_settled, is_cancelled, created_at)
		VALUES
			(:id, :user_id, :day, :side, :leverage, :quantity, :margin, :entry_price,
			 :is_settled, :is_cancelled, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("contract_repo.Create: %w", err)
	}
	return nil
}

// GetForUpdate locks one order inside a transaction so cancel and settle
// cannot race on the same row.
func (r *ContractRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.ContractOrder, error) {
	var o domain.ContractOrder
	err := tx.GetContext(ctx, &o,
		`SELECT * FROM contract_orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContractNotFound
		}
		return nil, fmt.Errorf("contract_repo.GetForUpdate: %w", err)
	}
	return &o, nil
}

// ListOpenByDay returns every open order placed on the given day, in creation
// order. The settlement pipeline walks this list one transaction per order.
func (r *ContractRepository) ListOpenByDay(ctx context.Context, day int) ([]domain.ContractOrder, error) {
	var orders []domain.ContractOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM contract_orders
		WHERE day = $1 AND is_settled = false AND is_cancelled = false
		ORDER BY created_at`, day)
	if err != nil {
		return nil, fmt.Errorf("contract_repo.ListOpenByDay: %w", err)
	}
	return orders, nil
}

// ListOpenByUser returns the user's open orders, newest first.
func (r *ContractRepository) ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]domain.ContractOrder, error) {
	var orders []domain.ContractOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM contract_orders
		WHERE user_id = $1 AND is_settled = false AND is_cancelled = false
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("contract_repo.ListOpenByUser: %w", err)
	}
	return orders, nil
}

// ListByUser returns the user's full order history, newest first.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ContractOrder, error) {
	var orders []domain.ContractOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM contract_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("contract_repo.ListByUser: %w", err)
	}
	return orders, nil
}

// ListOpenByUserAndDayForUpdate locks the user's open orders for one day
// inside the cancel transaction.
func (r *ContractRepository) ListOpenByUserAndDayForUpdate(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, day int) ([]domain.ContractOrder, error) {
	var orders []domain.ContractOrder
	err := tx.SelectContext(ctx, &orders, `
		SELECT * FROM contract_orders
		WHERE user_id = $1 AND day = $2 AND is_settled = false AND is_cancelled = false
		ORDER BY created_at
		FOR UPDATE`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("contract_repo.ListOpenByUserAndDayForUpdate: %w", err)
	}
	return orders, nil
}

// CancelOpenByUserAndDay flips every open order the user placed on the given
// day to cancelled. Callers hold the locks from ListOpenByUserAndDayForUpdate.
func (r *ContractRepository) CancelOpenByUserAndDay(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, day int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE contract_orders
		SET is_cancelled = true, settled_at = now()
		WHERE user_id = $1 AND day = $2 AND is_settled = false AND is_cancelled = false`,
		userID, day)
	if err != nil {
		return fmt.Errorf("contract_repo.CancelOpenByUserAndDay: %w", err)
	}
	return nil
}

// MarkSettled flips the terminal settled flag inside the settlement
// transaction.
func (r *ContractRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE contract_orders
		SET is_settled = true, settled_at = now()
		WHERE id = $1 AND is_settled = false AND is_cancelled = false`, id)
	if err != nil {
		return fmt.Errorf("contract_repo.MarkSettled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}

// MarkCancelled flips the terminal cancelled flag inside the cancel
// transaction.
func (r *ContractRepository) MarkCancelled(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE contract_orders
		SET is_cancelled = true, settled_at = now()
		WHERE id = $1 AND is_settled = false AND is_cancelled = false`, id)
	if err != nil {
		return fmt.Errorf("contract_repo.MarkCancelled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}

// ExposureRow is one (day, side) bucket of open-contract exposure.
type ExposureRow struct {
	Day      int                 `json:"day"      db:"day"`
	Side     domain.ContractSide `json:"side"     db:"side"`
	Orders   int                 `json:"orders"   db:"orders"`
	Margin   decimal.Decimal     `json:"margin"   db:"margin"`
	Quantity int64               `json:"quantity" db:"quantity"`
}

// OpenExposure groups every open order by day and side, oldest day first.
func (r *ContractRepository) OpenExposure(ctx context.Context) ([]ExposureRow, error) {
	var rows []ExposureRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT day, side,
		       COUNT(*)                   AS orders,
		       COALESCE(SUM(margin), 0)   AS margin,
		       COALESCE(SUM(quantity), 0) AS quantity
		FROM contract_orders
		WHERE is_settled = false AND is_cancelled = false
		GROUP BY day, side
		ORDER BY day, side`)
	if err != nil {
		return nil, fmt.Errorf("contract_repo.OpenExposure: %w", err)
	}
	return rows, nil
}

// DeleteAll purges every order. Runs inside the game-reset transaction,
// before user balances are restored.
func (r *ContractRepository) DeleteAll(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM contract_orders`); err != nil {
		return fmt.Errorf("contract_repo.DeleteAll: %w", err)
	}
	return nil
}
