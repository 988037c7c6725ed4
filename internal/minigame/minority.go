package minigame

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// minorityState is the slot sub-state while a minority-vote round runs. Bets
// is keyed by user so a re-submission replaces the prior entry.
type minorityState struct {
	Question  domain.MinorityQuestion          `json:"question"`
	GamingEnd *time.Time                       `json:"gaming_end,omitempty"`
	Bets      map[uuid.UUID]domain.MinorityBet `json:"bets"`
	Outcome   *domain.MinorityOutcome          `json:"outcome,omitempty"`
}

// minorityView hides everyone else's bets until settlement; the caller sees
// only their own current submission.
type minorityView struct {
	QuestionID int64                   `json:"questionId"`
	Question   string                  `json:"question"`
	OptionA    string                  `json:"optionA"`
	OptionB    string                  `json:"optionB"`
	OptionC    string                  `json:"optionC"`
	OptionD    string                  `json:"optionD"`
	Duration   int64                   `json:"duration"`
	OwnBet     *domain.MinorityBet     `json:"ownBet,omitempty"`
	Settlement *domain.MinorityOutcome `json:"settlementResult,omitempty"`
}

func (s *minorityState) view(phase domain.MiniGamePhase, userID uuid.UUID) *minorityView {
	q := &s.Question
	v := &minorityView{
		QuestionID: q.ID,
		Question:   q.Question,
		OptionA:    q.OptionA,
		OptionB:    q.OptionB,
		OptionC:    q.OptionC,
		OptionD:    q.OptionD,
		Duration:   q.Duration,
	}
	if b, ok := s.Bets[userID]; ok {
		bet := b
		v.OwnBet = &bet
	}
	if phase == domain.PhaseResult {
		v.Settlement = s.Outcome
	}
	return v
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// initMinority loads the question and enters PREPARE with the shared
// prepare → countdown → gaming → settle chain armed.
func (e *Engine) initMinority(ctx context.Context, questionID int64) error {
	q, err := e.repo.GetMinorityQuestion(ctx, questionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	end := now.Add(prepareDuration)
	e.cancelTimers()
	e.st = &state{
		GameType:  domain.GameMinority,
		Phase:     domain.PhasePrepare,
		StartTime: &now,
		EndTime:   &end,
		Minority: &minorityState{
			Question: *q,
			Bets:     map[uuid.UUID]domain.MinorityBet{},
		},
	}
	e.armMinorityPrepare(prepareDuration)

	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	e.logger.Info("minigame: minority initialised", "question_id", q.ID, "duration", q.Duration)
	return nil
}

// armMinorityPrepare schedules PREPARE → COUNTDOWN.
func (e *Engine) armMinorityPrepare(d time.Duration) {
	e.afterLocked(d, func(ctx context.Context) {
		if e.st.Minority == nil || e.st.Phase != domain.PhasePrepare {
			return
		}
		e.enterVoteCountdown(ctx, domain.GameMinority)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Player command
// ──────────────────────────────────────────────────────────────────────────────

type placeBetPayload struct {
	Option string          `json:"option"`
	Amount decimal.Decimal `json:"amount"`
}

// placeBet records or replaces the user's submission. The stake is only
// checked against cash here; no money moves until settlement.
func (e *Engine) placeBet(ctx context.Context, userID uuid.UUID, data json.RawMessage) error {
	s := e.st.Minority
	if s == nil || e.st.Phase != domain.PhaseGaming {
		return domain.ErrMiniGameNotActive
	}
	var p placeBetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !domain.IsVoteOption(p.Option) {
		return domain.ErrInvalidOption
	}
	amount := domain.RoundMoney(p.Amount)
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	}
	if amount.IsPositive() {
		user, err := e.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Cash.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
	}

	s.Bets[userID] = domain.MinorityBet{
		UserID:      userID,
		Option:      p.Option,
		Amount:      amount,
		SubmittedAt: time.Now().UTC(),
	}
	return e.persist(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// settleMinority computes the outcome from the final bet set and applies it
// in one transaction, reading every user row inside the transaction rather
// than trusting any cached balance.
func (e *Engine) settleMinority(ctx context.Context) (err error) {
	s := e.st.Minority
	outcome := domain.SettleMinority(s.Bets)

	if len(outcome.Results) > 0 {
		tx, txErr := e.db.BeginTxx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("minigame: begin tx: %w", txErr)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		for _, res := range outcome.Results {
			user, uerr := e.userRepo.GetForUpdate(ctx, tx, res.UserID)
			if uerr != nil {
				err = uerr
				return err
			}
			switch {
			case res.Won:
				user.Cash = domain.RoundMoney(user.Cash.Add(res.Profit))
			case res.Loss.IsPositive():
				if user.Cash.GreaterThanOrEqual(res.Loss) {
					user.Cash = domain.RoundMoney(user.Cash.Sub(res.Loss))
				} else {
					// Stake exceeds cash at settle time: the overflow becomes debt.
					user.Debt = domain.RoundMoney(user.Debt.Add(res.Loss.Sub(user.Cash)))
					user.Cash = decimal.Zero
				}
			}
			if err = e.userRepo.UpdateBalances(ctx, tx, user); err != nil {
				return err
			}
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("minigame: commit: %w", err)
		}
	}

	s.Outcome = &outcome
	e.st.Phase = domain.PhaseResult
	e.st.EndTime = nil
	if err := e.persistAndSync(ctx); err != nil {
		return err
	}

	e.emitLeaderboard(ctx)
	for _, res := range outcome.Results {
		e.emitAssets(ctx, res.UserID)
	}
	e.logger.Info("minigame: minority settled",
		"question_id", s.Question.ID, "status", outcome.Status, "bets", len(s.Bets))
	return nil
}

// rearmMinority restores the timer chain after a restart.
func (e *Engine) rearmMinority() {
	switch e.st.Phase {
	case domain.PhasePrepare:
		e.armMinorityPrepare(e.remainingOrZero())
	case domain.PhaseCountdown:
		e.afterLocked(e.remainingOrZero(), func(ctx context.Context) {
			if e.st.Phase == domain.PhaseCountdown {
				e.enterGaming(ctx)
			}
		})
	case domain.PhaseGaming:
		e.armSettle(e.remainingOrZero() + settleGrace)
	}
}
