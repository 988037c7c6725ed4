// Package minigame runs the three live event games (red envelope, speed quiz,
// minority vote) over a single shared runtime slot. All state mutations happen
// under one mutex; every mutation persists a snapshot before broadcasting it.
package minigame

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// Phase timings shared by the quiz and minority machines; the red envelope
// uses its own grab preparation window.
const (
	prepareDuration   = 5 * time.Second
	countdownDuration = 3 * time.Second
	settleGrace       = 1 * time.Second

	// totalPrepTime covers the 3 s shuffle animation plus the 3 s countdown
	// between START_GRAB and GAMING.
	totalPrepTime = 6 * time.Second
)

// Admin command names (ADMIN_MINIGAME_ACTION payload types).
const (
	cmdReset        = "RESET"
	cmdInit         = "INIT"
	cmdStartShuffle = "START_SHUFFLE"
	cmdStartGrab    = "START_GRAB"
	cmdRevealResult = "REVEAL_RESULT"
	cmdForceReveal  = "FORCE_REVEAL"
)

// Player command names (MINIGAME_ACTION payload types).
const (
	cmdGrabPacket      = "GRAB_PACKET"
	cmdScratchComplete = "SCRATCH_COMPLETE"
	cmdSubmitAnswer    = "SUBMIT_ANSWER"
	cmdPlaceBet        = "PLACE_BET"
)

// state is the full runtime snapshot: the shared slot plus whichever game's
// sub-state is active. It round-trips through the MiniGameRuntime payload.
type state struct {
	GameType  domain.MiniGameType  `json:"game_type"`
	Phase     domain.MiniGamePhase `json:"phase"`
	StartTime *time.Time           `json:"start_time,omitempty"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	RedEnvelope *redEnvelopeState `json:"red_envelope,omitempty"`
	Quiz        *quizState        `json:"quiz,omitempty"`
	Minority    *minorityState    `json:"minority,omitempty"`
}

func idleState() *state {
	return &state{GameType: domain.GameNone, Phase: domain.PhaseIdle}
}

// Engine is the single process-wide mini-game runtime. It implements
// ws.MiniGameHandler and service.MiniGameStateProvider.
type Engine struct {
	db       *sqlx.DB
	userRepo *repository.UserRepository
	gameRepo *repository.GameRepository
	repo     *repository.MiniGameRepository
	script   *service.ScriptService
	bus      service.Broadcaster
	logger   *slog.Logger

	mu sync.Mutex
	st *state
	// gen invalidates armed timers: every transition that supersedes pending
	// timers bumps it, and a firing timer aborts when its captured gen is
	// stale.
	gen    uint64
	timers []*time.Timer
}

// NewEngine creates the engine in the idle state; call Rehydrate at boot.
func NewEngine(
	db *sqlx.DB,
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	repo *repository.MiniGameRepository,
	script *service.ScriptService,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		db:       db,
		userRepo: userRepo,
		gameRepo: gameRepo,
		repo:     repo,
		script:   script,
		logger:   logger,
		st:       idleState(),
	}
}

// SetBroadcaster injects the WS bus post-construction.
func (e *Engine) SetBroadcaster(b service.Broadcaster) { e.bus = b }

// ──────────────────────────────────────────────────────────────────────────────
// Command dispatch
// ──────────────────────────────────────────────────────────────────────────────

// AdminAction executes one admin command. Role enforcement happens upstream;
// the engine trusts its callers.
func (e *Engine) AdminAction(ctx context.Context, userID uuid.UUID, action string, data json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch action {
	case cmdReset:
		return e.reset(ctx)
	case cmdInit:
		return e.initGame(ctx, data)
	case cmdStartShuffle:
		return e.startShuffle(ctx)
	case cmdStartGrab:
		return e.startGrab(ctx)
	case cmdRevealResult:
		return e.revealResult(ctx)
	case cmdForceReveal:
		return e.forceReveal(ctx)
	default:
		e.logger.Warn("minigame: unknown admin action", "action", action, "user_id", userID)
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
}

// PlayerAction executes one player command.
func (e *Engine) PlayerAction(ctx context.Context, userID uuid.UUID, action string, data json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch action {
	case cmdGrabPacket:
		return e.grabPacket(ctx, userID, data)
	case cmdScratchComplete:
		return e.scratchComplete(ctx, userID)
	case cmdSubmitAnswer:
		return e.submitAnswer(ctx, userID, data)
	case cmdPlaceBet:
		return e.placeBet(ctx, userID, data)
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
}

// initPayload selects the game and its game-specific parameters.
type initPayload struct {
	GameType   domain.MiniGameType `json:"gameType"`
	QuestionID int64               `json:"questionId"`

	// Red-envelope consolation prize used to pad a packet deficit.
	Consolation *domain.RedEnvelopeItem `json:"consolation,omitempty"`
}

// initGame loads the requested game into the slot. The slot must be idle or
// finished; RESET clears a stuck game.
func (e *Engine) initGame(ctx context.Context, data json.RawMessage) error {
	if e.st.Phase != domain.PhaseIdle && e.st.Phase != domain.PhaseResult {
		return domain.ErrMiniGameBusy
	}
	var p initPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	switch p.GameType {
	case domain.GameRedEnvelope:
		return e.initRedEnvelope(ctx, p)
	case domain.GameQuiz:
		return e.initQuiz(ctx, p.QuestionID)
	case domain.GameMinority:
		return e.initMinority(ctx, p.QuestionID)
	default:
		return fmt.Errorf("%w: unknown game type %q", domain.ErrInvalidInput, p.GameType)
	}
}

// reset cancels all timers and returns the slot to idle.
func (e *Engine) reset(ctx context.Context) error {
	e.cancelTimers()
	e.st = idleState()
	if err := e.repo.ClearRuntime(ctx); err != nil {
		return err
	}
	e.broadcastSync()
	e.logger.Info("minigame: slot reset")
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Persistence, broadcast, rehydration
// ──────────────────────────────────────────────────────────────────────────────

// persist writes the snapshot to the store. Callers hold the mutex. The write
// happens before any broadcast so the durable record never lags what clients
// saw.
func (e *Engine) persist(ctx context.Context) error {
	payload, err := json.Marshal(e.st)
	if err != nil {
		return fmt.Errorf("minigame: marshal state: %w", err)
	}
	return e.repo.SaveRuntime(ctx, &domain.MiniGameRuntime{
		Key:       domain.MiniGameRuntimeKey,
		GameType:  e.st.GameType,
		Phase:     e.st.Phase,
		StartTime: e.st.StartTime,
		EndTime:   e.st.EndTime,
		Payload:   payload,
	})
}

// persistAndSync is the standard write path: snapshot to store, then full
// MINIGAME_SYNC to everyone.
func (e *Engine) persistAndSync(ctx context.Context) error {
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.broadcastSync()
	return nil
}

func (e *Engine) broadcastSync() {
	if e.bus != nil {
		e.bus.Emit(ws.EventMiniGameSync, e.publicStateLocked(uuid.Nil))
	}
}

func (e *Engine) emitEvent(payload any) {
	if e.bus != nil {
		e.bus.Emit(ws.EventMiniGameEvent, payload)
	}
}

// Rehydrate restores the persisted runtime after a process restart and
// re-arms its timers from EndTime − now; an already-expired deadline fires the
// pending transition immediately.
func (e *Engine) Rehydrate(ctx context.Context) error {
	rt, err := e.repo.LoadRuntime(ctx)
	if err != nil {
		return err
	}
	if rt == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var st state
	if err := json.Unmarshal(rt.Payload, &st); err != nil {
		return fmt.Errorf("minigame: unmarshal snapshot: %w", err)
	}
	e.st = &st
	e.logger.Info("minigame: runtime rehydrated",
		"game", st.GameType, "phase", st.Phase)

	switch st.GameType {
	case domain.GameRedEnvelope:
		e.rearmRedEnvelope()
	case domain.GameQuiz:
		e.rearmQuiz()
	case domain.GameMinority:
		e.rearmMinority()
	}
	return nil
}

// remainingOrZero is the time left until the stored deadline.
func (e *Engine) remainingOrZero() time.Duration {
	if e.st.EndTime == nil {
		return 0
	}
	d := time.Until(*e.st.EndTime)
	if d < 0 {
		return 0
	}
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// Timers
// ──────────────────────────────────────────────────────────────────────────────

// afterLocked arms a timer that re-enters the engine under the mutex, aborting
// if a later transition superseded it. Callers hold the mutex.
func (e *Engine) afterLocked(d time.Duration, fn func(ctx context.Context)) {
	gen := e.gen
	t := time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(ctx)
	})
	e.timers = append(e.timers, t)
}

// cancelTimers stops pending timers and invalidates any already-fired closure
// waiting on the mutex.
func (e *Engine) cancelTimers() {
	e.gen++
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Public state
// ──────────────────────────────────────────────────────────────────────────────

// PublicState returns the client-facing view of the slot for the given user.
// Secrets that decide an unfinished round (the quiz answer, other players'
// submissions) are withheld until RESULT.
func (e *Engine) PublicState(userID uuid.UUID) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.publicStateLocked(userID)
}

// PublicView is the MINIGAME_SYNC payload.
type PublicView struct {
	GameType  domain.MiniGameType  `json:"gameType"`
	Phase     domain.MiniGamePhase `json:"phase"`
	StartTime *time.Time           `json:"startTime,omitempty"`
	EndTime   *time.Time           `json:"endTime,omitempty"`

	RedEnvelope *redEnvelopeView `json:"redEnvelope,omitempty"`
	Quiz        *quizView        `json:"quiz,omitempty"`
	Minority    *minorityView    `json:"minority,omitempty"`
}

func (e *Engine) publicStateLocked(userID uuid.UUID) PublicView {
	v := PublicView{
		GameType:  e.st.GameType,
		Phase:     e.st.Phase,
		StartTime: e.st.StartTime,
		EndTime:   e.st.EndTime,
	}
	switch {
	case e.st.RedEnvelope != nil:
		if e.st.Phase == domain.PhaseReveal || e.st.Phase == domain.PhaseResult {
			v.RedEnvelope = e.st.RedEnvelope.revealView()
		} else {
			v.RedEnvelope = e.st.RedEnvelope.view()
		}
	case e.st.Quiz != nil:
		v.Quiz = e.st.Quiz.view(e.st.Phase, userID)
	case e.st.Minority != nil:
		v.Minority = e.st.Minority.view(e.st.Phase, userID)
	}
	return v
}

// ──────────────────────────────────────────────────────────────────────────────
// Shared settlement helpers
// ──────────────────────────────────────────────────────────────────────────────

// emitAssets pushes a fresh ASSETS_UPDATE to one user.
func (e *Engine) emitAssets(ctx context.Context, userID uuid.UUID) {
	if e.bus == nil {
		return
	}
	user, err := e.userRepo.GetByID(ctx, userID)
	if err != nil {
		e.logger.Warn("minigame: assets push skipped", "user_id", userID, "error", err)
		return
	}
	e.bus.EmitToUser(userID, ws.EventAssetsUpdate, user.Assets())
}

// emitLeaderboard broadcasts a ranking valued at the current price.
func (e *Engine) emitLeaderboard(ctx context.Context) {
	if e.bus == nil {
		return
	}
	g, err := e.gameRepo.Get(ctx)
	if err != nil {
		e.logger.Warn("minigame: leaderboard skipped", "error", err)
		return
	}
	price := e.script.PriceAt(g.StateAt(time.Now().UTC()))
	board, err := e.userRepo.Leaderboard(ctx, price)
	if err != nil {
		e.logger.Warn("minigame: leaderboard skipped", "error", err)
		return
	}
	e.bus.Emit(ws.EventLeaderboardUpdate, ws.LeaderboardPayload{Data: board})
}
