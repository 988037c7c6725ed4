package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// UserRepository handles all database operations for Users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users
			(id, username, password_hash, display_name, avatar, role,
			 cash, stocks, debt, daily_borrowed, first_sign_in, is_employee,
			 avatar_update_count, loan_shark_visit_count, created_at, updated_at)
		VALUES
			(:id, :username, :password_hash, :display_name, :avatar, :role,
			 :cash, :stocks, :debt, :daily_borrowed, :first_sign_in, :is_employee,
			 :avatar_update_count, :loan_shark_visit_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		if isPgUniqueViolation(err, "users_username_key") {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("user_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByID: %w", err)
	}
	return &u, nil
}

// GetByUsername fetches a user by username (used for login).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByUsername: %w", err)
	}
	return &u, nil
}

// GetForUpdate locks the user row inside a transaction. Every balance
// mutation goes through this lock so concurrent trades serialise per user.
func (r *UserRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := tx.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetForUpdate: %w", err)
	}
	return &u, nil
}

// UpdateBalances writes the mutable balance fields back inside a transaction.
// Callers must hold the FOR UPDATE lock and have rounded every money field.
func (r *UserRepository) UpdateBalances(ctx context.Context, tx *sqlx.Tx, u *domain.User) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET cash = $1, stocks = $2, debt = $3, daily_borrowed = $4,
		    loan_shark_visit_count = $5, updated_at = now()
		WHERE id = $6`,
		u.Cash, u.Stocks, u.Debt, u.DailyBorrowed, u.LoanSharkVisitCount, u.ID)
	if err != nil {
		return fmt.Errorf("user_repo.UpdateBalances: %w", err)
	}
	return nil
}

// UpdateProfile writes the profile fields (display name, avatar, counters).
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET display_name = $1, avatar = $2, first_sign_in = $3,
		    avatar_update_count = $4, updated_at = now()
		WHERE id = $5`,
		u.DisplayName, u.Avatar, u.FirstSignIn, u.AvatarUpdateCount, u.ID)
	if err != nil {
		return fmt.Errorf("user_repo.UpdateProfile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns a paginated list of all users.
// Returns (users, totalCount, error).
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	var users []*domain.User
	var total int

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List count: %w", err)
	}
	if err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List select: %w", err)
	}
	return users, total, nil
}

// ListIDs returns every user id. Used to fan out per-user pushes.
func (r *UserRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users`); err != nil {
		return nil, fmt.Errorf("user_repo.ListIDs: %w", err)
	}
	return ids, nil
}

// ListEmployeeIDs returns the ids of staff accounts, the participant pool of
// the red-envelope game.
func (r *UserRepository) ListEmployeeIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM users WHERE is_employee = true`); err != nil {
		return nil, fmt.Errorf("user_repo.ListEmployeeIDs: %w", err)
	}
	return ids, nil
}

// UpdateRole changes a user's role (admin operation).
func (r *UserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.UserRole) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`,
		string(role), userID)
	if err != nil {
		return fmt.Errorf("user_repo.UpdateRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetEmployee toggles the employee flag used to exclude staff accounts from
// the leaderboard.
func (r *UserRepository) SetEmployee(ctx context.Context, userID uuid.UUID, employee bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_employee = $1, updated_at = now() WHERE id = $2`,
		employee, userID)
	if err != nil {
		return fmt.Errorf("user_repo.SetEmployee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ── Day-boundary bulk operations ──────────────────────────────────────────────

// ApplyDailyInterest grows every positive debt by the daily rate, rounding to
// money precision in the database so the persisted value matches what any
// later read computes.
func (r *UserRepository) ApplyDailyInterest(ctx context.Context, tx *sqlx.Tx, rate decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET debt = ROUND(debt * (1 + $1::numeric), 2), updated_at = now()
		 WHERE debt > 0`, rate)
	if err != nil {
		return fmt.Errorf("user_repo.ApplyDailyInterest: %w", err)
	}
	return nil
}

// ResetDailyBorrowed zeroes every user's borrow quota usage for the new day.
func (r *UserRepository) ResetDailyBorrowed(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET daily_borrowed = 0, updated_at = now() WHERE daily_borrowed <> 0`)
	if err != nil {
		return fmt.Errorf("user_repo.ResetDailyBorrowed: %w", err)
	}
	return nil
}

// ResetAllBalances restores every account to the starting position. Used by
// the game reset; contract orders must be purged in the same transaction
// before this runs.
func (r *UserRepository) ResetAllBalances(ctx context.Context, tx *sqlx.Tx, initialCash decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET cash = $1, stocks = 0, debt = 0, daily_borrowed = 0,
		    loan_shark_visit_count = 0, first_sign_in = false, updated_at = now()`,
		initialCash)
	if err != nil {
		return fmt.Errorf("user_repo.ResetAllBalances: %w", err)
	}
	return nil
}

// ResetCounters zeroes the per-run vanity counters when a new run starts.
func (r *UserRepository) ResetCounters(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET avatar_update_count = 0, loan_shark_visit_count = 0, updated_at = now()
		WHERE avatar_update_count <> 0 OR loan_shark_visit_count <> 0`)
	if err != nil {
		return fmt.Errorf("user_repo.ResetCounters: %w", err)
	}
	return nil
}

// DeleteAllExcept removes every player account, keeping admins and the caller.
// Used by the full factory reset.
func (r *UserRepository) DeleteAllExcept(ctx context.Context, tx *sqlx.Tx, keepID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM users WHERE role <> 'ADMIN' AND id <> $1`, keepID)
	if err != nil {
		return fmt.Errorf("user_repo.DeleteAllExcept: %w", err)
	}
	return nil
}

// ── Leaderboard ───────────────────────────────────────────────────────────────

// Leaderboard values every non-staff account at the given price and returns
// the top-100 by total assets:
//
//	cash + stocks × price + Σ open-contract margins − debt
//
// Margins are summed over every still-open order: the settlement pipeline
// closes prior-day orders at each boundary, so only current-day margin is
// ever outstanding. Admin and staff accounts are excluded — both hold
// privileged balances (staff receive red-envelope prizes) and would distort
// the standings. Ranks are dense 1..N in descending asset order, ties broken
// by signup time.
func (r *UserRepository) Leaderboard(ctx context.Context, price decimal.Decimal) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT u.id AS user_id,
		       u.display_name,
		       u.avatar,
		       ROUND(u.cash + u.stocks * $1::numeric + COALESCE(m.margin, 0) - u.debt, 2) AS total_assets
		FROM users u
		LEFT JOIN (
			SELECT user_id, SUM(margin) AS margin
			FROM contract_orders
			WHERE is_settled = false AND is_cancelled = false
			GROUP BY user_id
		) m ON m.user_id = u.id
		WHERE u.is_employee = false AND u.role <> 'ADMIN'
		ORDER BY total_assets DESC, u.created_at ASC
		LIMIT 100`,
		price)
	if err != nil {
		return nil, fmt.Errorf("user_repo.Leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// OpenMarginTotal sums the margins frozen in a user's open contracts.
func (r *UserRepository) OpenMarginTotal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(margin), 0)
		FROM contract_orders
		WHERE user_id = $1 AND is_settled = false AND is_cancelled = false`,
		userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("user_repo.OpenMarginTotal: %w", err)
	}
	return total, nil
}

// Delete removes one account. Contract orders cascade via the FK.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("user_repo.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// BalanceTotals is the aggregate balance sheet served by the ops console.
type BalanceTotals struct {
	Users     int             `json:"users"     db:"users"`
	Employees int             `json:"employees" db:"employees"`
	Cash      decimal.Decimal `json:"cash"      db:"cash"`
	Debt      decimal.Decimal `json:"debt"      db:"debt"`
	Stocks    int64           `json:"stocks"    db:"stocks"`
}

// Totals aggregates every account's balances in one query.
func (r *UserRepository) Totals(ctx context.Context) (BalanceTotals, error) {
	var t BalanceTotals
	err := r.db.GetContext(ctx, &t, `
		SELECT COUNT(*)                            AS users,
		       COUNT(*) FILTER (WHERE is_employee) AS employees,
		       COALESCE(SUM(cash), 0)              AS cash,
		       COALESCE(SUM(debt), 0)              AS debt,
		       COALESCE(SUM(stocks), 0)            AS stocks
		FROM users`)
	if err != nil {
		return BalanceTotals{}, fmt.Errorf("user_repo.Totals: %w", err)
	}
	return t, nil
}

// isPgUniqueViolation checks whether err is a PostgreSQL unique constraint
// violation for the given constraint name.
func isPgUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique constraint") && strings.Contains(msg, constraintName)
}
