package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// MiniGameRepository handles the mini-game catalogues and the persisted
// runtime snapshot.
type MiniGameRepository struct {
	db *sqlx.DB
}

// NewMiniGameRepository creates a new MiniGameRepository.
func NewMiniGameRepository(db *sqlx.DB) *MiniGameRepository {
	return &MiniGameRepository{db: db}
}

// ── Runtime snapshot ──────────────────────────────────────────────────────────

// SaveRuntime upserts the single CURRENT_GAME snapshot row.
func (r *MiniGameRepository) SaveRuntime(ctx context.Context, rt *domain.MiniGameRuntime) error {
	query := `
		INSERT INTO minigame_runtime (key, game_type, phase, start_time, end_time, payload, updated_at)
		VALUES (:key, :game_type, :phase, :start_time, :end_time, :payload, now())
		ON CONFLICT (key) DO UPDATE
		SET game_type = EXCLUDED.game_type,
		    phase = EXCLUDED.phase,
		    start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    payload = EXCLUDED.payload,
		    updated_at = now()`
	if _, err := r.db.NamedExecContext(ctx, query, rt); err != nil {
		return fmt.Errorf("minigame_repo.SaveRuntime: %w", err)
	}
	return nil
}

// LoadRuntime returns the persisted snapshot, or (nil, nil) when no game has
// ever run.
func (r *MiniGameRepository) LoadRuntime(ctx context.Context) (*domain.MiniGameRuntime, error) {
	var rt domain.MiniGameRuntime
	err := r.db.GetContext(ctx, &rt,
		`SELECT * FROM minigame_runtime WHERE key = $1`, domain.MiniGameRuntimeKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("minigame_repo.LoadRuntime: %w", err)
	}
	return &rt, nil
}

// ClearRuntime deletes the snapshot (admin reset).
func (r *MiniGameRepository) ClearRuntime(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM minigame_runtime WHERE key = $1`, domain.MiniGameRuntimeKey); err != nil {
		return fmt.Errorf("minigame_repo.ClearRuntime: %w", err)
	}
	return nil
}

// ── Red envelope catalogue ────────────────────────────────────────────────────

// CreateRedEnvelopeItem inserts a prize entry and fills in its id.
func (r *MiniGameRepository) CreateRedEnvelopeItem(ctx context.Context, it *domain.RedEnvelopeItem) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO red_envelope_items (name, type, prize_value, amount, display_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		it.Name, string(it.Type), it.PrizeValue, it.Amount, it.DisplayOrder, it.IsActive).
		Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.CreateRedEnvelopeItem: %w", err)
	}
	return nil
}

// UpdateRedEnvelopeItem rewrites a prize entry.
func (r *MiniGameRepository) UpdateRedEnvelopeItem(ctx context.Context, it *domain.RedEnvelopeItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE red_envelope_items
		SET name = $1, type = $2, prize_value = $3, amount = $4,
		    display_order = $5, is_active = $6
		WHERE id = $7`,
		it.Name, string(it.Type), it.PrizeValue, it.Amount, it.DisplayOrder, it.IsActive, it.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.UpdateRedEnvelopeItem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// DeleteRedEnvelopeItem removes a prize entry.
func (r *MiniGameRepository) DeleteRedEnvelopeItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM red_envelope_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("minigame_repo.DeleteRedEnvelopeItem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// ListRedEnvelopeItems returns the catalogue in display order.
func (r *MiniGameRepository) ListRedEnvelopeItems(ctx context.Context) ([]domain.RedEnvelopeItem, error) {
	var items []domain.RedEnvelopeItem
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM red_envelope_items ORDER BY display_order, id`)
	if err != nil {
		return nil, fmt.Errorf("minigame_repo.ListRedEnvelopeItems: %w", err)
	}
	return items, nil
}

// ── Quiz catalogue ────────────────────────────────────────────────────────────

// CreateQuizQuestion inserts a quiz question and fills in its id.
func (r *MiniGameRepository) CreateQuizQuestion(ctx context.Context, q *domain.QuizQuestion) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO quiz_questions
			(question, option_a, option_b, option_c, option_d, correct_answer,
			 duration, sort_order, reward_first, reward_second, reward_third, reward_others)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer,
		q.Duration, q.SortOrder, q.First, q.Second, q.Third, q.Others).
		Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.CreateQuizQuestion: %w", err)
	}
	return nil
}

// UpdateQuizQuestion rewrites a quiz question.
func (r *MiniGameRepository) UpdateQuizQuestion(ctx context.Context, q *domain.QuizQuestion) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quiz_questions
		SET question = $1, option_a = $2, option_b = $3, option_c = $4, option_d = $5,
		    correct_answer = $6, duration = $7, sort_order = $8,
		    reward_first = $9, reward_second = $10, reward_third = $11, reward_others = $12
		WHERE id = $13`,
		q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer,
		q.Duration, q.SortOrder, q.First, q.Second, q.Third, q.Others, q.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.UpdateQuizQuestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// DeleteQuizQuestion removes a quiz question.
func (r *MiniGameRepository) DeleteQuizQuestion(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("minigame_repo.DeleteQuizQuestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// GetQuizQuestion fetches one quiz question.
func (r *MiniGameRepository) GetQuizQuestion(ctx context.Context, id int64) (*domain.QuizQuestion, error) {
	var q domain.QuizQuestion
	err := r.db.GetContext(ctx, &q, `SELECT * FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("minigame_repo.GetQuizQuestion: %w", err)
	}
	return &q, nil
}

// ListQuizQuestions returns the catalogue in sort order.
func (r *MiniGameRepository) ListQuizQuestions(ctx context.Context) ([]domain.QuizQuestion, error) {
	var qs []domain.QuizQuestion
	err := r.db.SelectContext(ctx, &qs,
		`SELECT * FROM quiz_questions ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("minigame_repo.ListQuizQuestions: %w", err)
	}
	return qs, nil
}

// ── Minority catalogue ────────────────────────────────────────────────────────

// CreateMinorityQuestion inserts a minority question and fills in its id.
func (r *MiniGameRepository) CreateMinorityQuestion(ctx context.Context, q *domain.MinorityQuestion) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO minority_questions
			(question, option_a, option_b, option_c, option_d, duration, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Duration, q.SortOrder).
		Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.CreateMinorityQuestion: %w", err)
	}
	return nil
}

// UpdateMinorityQuestion rewrites a minority question.
func (r *MiniGameRepository) UpdateMinorityQuestion(ctx context.Context, q *domain.MinorityQuestion) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE minority_questions
		SET question = $1, option_a = $2, option_b = $3, option_c = $4, option_d = $5,
		    duration = $6, sort_order = $7
		WHERE id = $8`,
		q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Duration, q.SortOrder, q.ID)
	if err != nil {
		return fmt.Errorf("minigame_repo.UpdateMinorityQuestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// DeleteMinorityQuestion removes a minority question.
func (r *MiniGameRepository) DeleteMinorityQuestion(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM minority_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("minigame_repo.DeleteMinorityQuestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// GetMinorityQuestion fetches one minority question.
func (r *MiniGameRepository) GetMinorityQuestion(ctx context.Context, id int64) (*domain.MinorityQuestion, error) {
	var q domain.MinorityQuestion
	err := r.db.GetContext(ctx, &q, `SELECT * FROM minority_questions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("minigame_repo.GetMinorityQuestion: %w", err)
	}
	return &q, nil
}

// ListMinorityQuestions returns the catalogue in sort order.
func (r *MiniGameRepository) ListMinorityQuestions(ctx context.Context) ([]domain.MinorityQuestion, error) {
	var qs []domain.MinorityQuestion
	err := r.db.SelectContext(ctx, &qs,
		`SELECT * FROM minority_questions ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("minigame_repo.ListMinorityQuestions: %w", err)
	}
	return qs, nil
}
