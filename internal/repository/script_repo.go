package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ScriptRepository handles the scripted price/news timeline and the
// admin-authored events it is generated from.
type ScriptRepository struct {
	db *sqlx.DB
}

// NewScriptRepository creates a new ScriptRepository.
func NewScriptRepository(db *sqlx.DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// ── Script days ───────────────────────────────────────────────────────────────

// ReplaceAll swaps the entire script in one transaction: regeneration and
// import are all-or-nothing so readers never see a half-written timeline.
func (r *ScriptRepository) ReplaceAll(ctx context.Context, days []domain.ScriptDay) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("script_repo.ReplaceAll begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM script_days`); err != nil {
		return fmt.Errorf("script_repo.ReplaceAll delete: %w", err)
	}

	query := `
		INSERT INTO script_days
			(day, price, title, news, effective_trend, publish_offset, is_broadcasted)
		VALUES
			(:day, :price, :title, :news, :effective_trend, :publish_offset, :is_broadcasted)`
	for i := range days {
		if _, err = tx.NamedExecContext(ctx, query, &days[i]); err != nil {
			return fmt.Errorf("script_repo.ReplaceAll insert day %d: %w", days[i].Day, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("script_repo.ReplaceAll commit: %w", err)
	}
	return nil
}

// ListAll returns the full script ordered by day.
func (r *ScriptRepository) ListAll(ctx context.Context) ([]domain.ScriptDay, error) {
	var days []domain.ScriptDay
	err := r.db.SelectContext(ctx, &days, `SELECT * FROM script_days ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("script_repo.ListAll: %w", err)
	}
	return days, nil
}

// GetDay returns one script day.
func (r *ScriptRepository) GetDay(ctx context.Context, day int) (*domain.ScriptDay, error) {
	var d domain.ScriptDay
	err := r.db.GetContext(ctx, &d, `SELECT * FROM script_days WHERE day = $1`, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScriptDayNotFound
		}
		return nil, fmt.Errorf("script_repo.GetDay: %w", err)
	}
	return &d, nil
}

// MarkBroadcasted flips the day's publication flag. The flag is monotone
// within a run; only ResetBroadcastFlags clears it.
func (r *ScriptRepository) MarkBroadcasted(ctx context.Context, day int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE script_days SET is_broadcasted = true WHERE day = $1`, day)
	if err != nil {
		return fmt.Errorf("script_repo.MarkBroadcasted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrScriptDayNotFound
	}
	return nil
}

// ResetBroadcastFlags clears every publication flag. Runs inside the start /
// restart transaction so a fresh run re-publishes its news.
func (r *ScriptRepository) ResetBroadcastFlags(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE script_days SET is_broadcasted = false WHERE is_broadcasted = true`); err != nil {
		return fmt.Errorf("script_repo.ResetBroadcastFlags: %w", err)
	}
	return nil
}

// DeleteAllDays purges the script inside a caller-owned transaction (factory
// reset).
func (r *ScriptRepository) DeleteAllDays(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM script_days`); err != nil {
		return fmt.Errorf("script_repo.DeleteAllDays: %w", err)
	}
	return nil
}

// ── Events ────────────────────────────────────────────────────────────────────

// CreateEvent inserts an admin-authored event and returns its id.
func (r *ScriptRepository) CreateEvent(ctx context.Context, ev *domain.Event) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO events (day, title, news, trend, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at`,
		ev.Day, ev.Title, ev.News, string(ev.Trend)).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("script_repo.CreateEvent: %w", err)
	}
	return nil
}

// UpdateEvent rewrites an event in place.
func (r *ScriptRepository) UpdateEvent(ctx context.Context, ev *domain.Event) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET day = $1, title = $2, news = $3, trend = $4 WHERE id = $5`,
		ev.Day, ev.Title, ev.News, string(ev.Trend), ev.ID)
	if err != nil {
		return fmt.Errorf("script_repo.UpdateEvent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an event.
func (r *ScriptRepository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("script_repo.DeleteEvent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DeleteAllEvents purges every scheduled event inside a caller-owned
// transaction (factory reset).
func (r *ScriptRepository) DeleteAllEvents(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("script_repo.DeleteAllEvents: %w", err)
	}
	return nil
}

// ListEvents returns all events ordered by day then insertion order, the same
// order the generator consumes them in.
func (r *ScriptRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var evs []domain.Event
	err := r.db.SelectContext(ctx, &evs, `SELECT * FROM events ORDER BY day, id`)
	if err != nil {
		return nil, fmt.Errorf("script_repo.ListEvents: %w", err)
	}
	return evs, nil
}
