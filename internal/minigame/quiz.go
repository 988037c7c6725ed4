package minigame

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// quizState is the slot sub-state while a speed-quiz round runs. Answers is
// keyed by user so the at-most-one-answer rule is a map lookup.
type quizState struct {
	Question        domain.QuizQuestion             `json:"question"`
	NextCandidateID *int64                          `json:"next_candidate_id,omitempty"`
	GamingEnd       *time.Time                      `json:"gaming_end,omitempty"`
	Answers         map[uuid.UUID]domain.QuizAnswer `json:"answers"`
	Winners         []domain.QuizWinner             `json:"winners,omitempty"`
}

// quizView hides the correct answer and other players' submissions until the
// round settles.
type quizView struct {
	QuestionID      int64               `json:"questionId"`
	Question        string              `json:"question"`
	OptionA         string              `json:"optionA"`
	OptionB         string              `json:"optionB"`
	OptionC         string              `json:"optionC"`
	OptionD         string              `json:"optionD"`
	Duration        int64               `json:"duration"`
	NextCandidateID *int64              `json:"nextCandidateId,omitempty"`
	HasAnswered     bool                `json:"hasAnswered"`
	CorrectAnswer   string              `json:"correctAnswer,omitempty"`
	Winners         []domain.QuizWinner `json:"winners,omitempty"`
}

func (s *quizState) view(phase domain.MiniGamePhase, userID uuid.UUID) *quizView {
	q := &s.Question
	v := &quizView{
		QuestionID:      q.ID,
		Question:        q.Question,
		OptionA:         q.OptionA,
		OptionB:         q.OptionB,
		OptionC:         q.OptionC,
		OptionD:         q.OptionD,
		Duration:        q.Duration,
		NextCandidateID: s.NextCandidateID,
	}
	if _, ok := s.Answers[userID]; ok {
		v.HasAnswered = true
	}
	if phase == domain.PhaseResult {
		v.CorrectAnswer = q.CorrectAnswer
		v.Winners = s.Winners
	}
	return v
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// initQuiz loads the question, precomputes the next candidate for the host,
// and enters PREPARE with the full timer chain armed.
func (e *Engine) initQuiz(ctx context.Context, questionID int64) error {
	q, err := e.repo.GetQuizQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	next, err := e.nextQuizCandidate(ctx, q)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	end := now.Add(prepareDuration)
	e.cancelTimers()
	e.st = &state{
		GameType:  domain.GameQuiz,
		Phase:     domain.PhasePrepare,
		StartTime: &now,
		EndTime:   &end,
		Quiz: &quizState{
			Question:        *q,
			NextCandidateID: next,
			Answers:         map[uuid.UUID]domain.QuizAnswer{},
		},
	}
	e.armQuizPrepare(prepareDuration)

	if err := e.persistAndSync(ctx); err != nil {
		return err
	}
	e.logger.Info("minigame: quiz initialised", "question_id", q.ID, "duration", q.Duration)
	return nil
}

// nextQuizCandidate finds the first question after the current one in
// (sortOrder, id) order, for the host's "next question" button.
func (e *Engine) nextQuizCandidate(ctx context.Context, current *domain.QuizQuestion) (*int64, error) {
	all, err := e.repo.ListQuizQuestions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		q := &all[i]
		if q.SortOrder > current.SortOrder ||
			(q.SortOrder == current.SortOrder && q.ID > current.ID) {
			id := q.ID
			return &id, nil
		}
	}
	return nil, nil
}

// armQuizPrepare schedules PREPARE → COUNTDOWN.
func (e *Engine) armQuizPrepare(d time.Duration) {
	e.afterLocked(d, func(ctx context.Context) {
		if e.st.Quiz == nil || e.st.Phase != domain.PhasePrepare {
			return
		}
		e.enterVoteCountdown(ctx, domain.GameQuiz)
	})
}

// enterVoteCountdown runs the shared COUNTDOWN phase for quiz and minority:
// one MINIGAME_COUNTDOWN immediately, then every second from 3 down to 0,
// then GAMING for the question's duration with the settle timer armed.
func (e *Engine) enterVoteCountdown(ctx context.Context, game domain.MiniGameType) {
	now := time.Now().UTC()
	end := now.Add(countdownDuration)
	e.st.Phase = domain.PhaseCountdown
	e.st.EndTime = &end
	if err := e.persistAndSync(ctx); err != nil {
		e.logger.Error("minigame: countdown entry failed", "error", err)
	}

	for n := 3; n >= 0; n-- {
		n := n
		delay := time.Duration(3-n) * time.Second
		e.afterLocked(delay, func(ctx context.Context) {
			e.countdownTick(ctx, game, n)
		})
	}
}

// countdownTick emits one MINIGAME_COUNTDOWN beat. The final beat owns the
// phase flip itself, so the 0 is always on the wire before GAMING opens.
// Callers hold the mutex.
func (e *Engine) countdownTick(ctx context.Context, game domain.MiniGameType, n int) {
	if e.st.Phase != domain.PhaseCountdown || e.st.GameType != game {
		return
	}
	if e.bus != nil {
		e.bus.Emit(ws.EventMiniGameCountdown, ws.CountdownPayload{Countdown: n})
	}
	if n == 0 {
		e.enterGaming(ctx)
	}
}

// enterGaming opens the submission window and arms the settle timer one grace
// second past its end.
func (e *Engine) enterGaming(ctx context.Context) {
	duration := e.activeDuration()
	now := time.Now().UTC()
	end := now.Add(time.Duration(duration) * time.Second)
	e.st.Phase = domain.PhaseGaming
	e.st.EndTime = &end
	if q := e.st.Quiz; q != nil {
		q.GamingEnd = &end
	}
	if m := e.st.Minority; m != nil {
		m.GamingEnd = &end
	}
	if err := e.persistAndSync(ctx); err != nil {
		e.logger.Error("minigame: gaming entry failed", "error", err)
	}
	e.armSettle(time.Duration(duration)*time.Second + settleGrace)
}

// activeDuration is the GAMING length of whichever game owns the slot.
func (e *Engine) activeDuration() int64 {
	switch {
	case e.st.Quiz != nil:
		return e.st.Quiz.Question.Duration
	case e.st.Minority != nil:
		return e.st.Minority.Question.Duration
	default:
		return 0
	}
}

// armSettle schedules the one-shot settlement.
func (e *Engine) armSettle(d time.Duration) {
	e.afterLocked(d, func(ctx context.Context) {
		if e.st.Phase != domain.PhaseGaming {
			return
		}
		var err error
		switch {
		case e.st.Quiz != nil:
			err = e.settleQuiz(ctx)
		case e.st.Minority != nil:
			err = e.settleMinority(ctx)
		}
		if err != nil {
			e.logger.Error("minigame: settlement failed", "game", e.st.GameType, "error", err)
		}
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Player command
// ──────────────────────────────────────────────────────────────────────────────

type submitAnswerPayload struct {
	Answer string `json:"answer"`
}

// submitAnswer stores one answer per user; the phase check and the write are
// both under the engine mutex.
func (e *Engine) submitAnswer(ctx context.Context, userID uuid.UUID, data json.RawMessage) error {
	s := e.st.Quiz
	if s == nil || e.st.Phase != domain.PhaseGaming {
		return domain.ErrMiniGameNotActive
	}
	var p submitAnswerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !domain.IsVoteOption(p.Answer) {
		return domain.ErrInvalidOption
	}
	if _, ok := s.Answers[userID]; ok {
		return domain.ErrAlreadyParticipated
	}

	s.Answers[userID] = domain.QuizAnswer{
		UserID:      userID,
		Answer:      p.Answer,
		SubmittedAt: time.Now().UTC(),
	}
	return e.persist(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// settleQuiz ranks the correct answers, credits every reward in one
// transaction, and publishes the result.
func (e *Engine) settleQuiz(ctx context.Context) error {
	s := e.st.Quiz
	end := time.Now().UTC()
	if s.GamingEnd != nil {
		end = *s.GamingEnd
	}

	answers := make([]domain.QuizAnswer, 0, len(s.Answers))
	for _, a := range s.Answers {
		answers = append(answers, a)
	}
	winners := domain.RankQuizWinners(answers, &s.Question, end)

	if len(winners) > 0 {
		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("minigame: begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		for _, w := range winners {
			user, uerr := e.userRepo.GetForUpdate(ctx, tx, w.UserID)
			if uerr != nil {
				err = uerr
				return err
			}
			user.Cash = domain.RoundMoney(user.Cash.Add(w.Reward))
			if err = e.userRepo.UpdateBalances(ctx, tx, user); err != nil {
				return err
			}
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("minigame: commit: %w", err)
		}
	}

	s.Winners = winners
	e.st.Phase = domain.PhaseResult
	e.st.EndTime = nil
	if err := e.persistAndSync(ctx); err != nil {
		return err
	}

	e.emitLeaderboard(ctx)
	for _, w := range winners {
		e.emitAssets(ctx, w.UserID)
	}
	e.logger.Info("minigame: quiz settled",
		"question_id", s.Question.ID, "answers", len(answers), "winners", len(winners))
	return nil
}

// rearmQuiz restores the timer chain after a restart; an already-expired
// deadline fires its transition immediately.
func (e *Engine) rearmQuiz() {
	switch e.st.Phase {
	case domain.PhasePrepare:
		e.armQuizPrepare(e.remainingOrZero())
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
