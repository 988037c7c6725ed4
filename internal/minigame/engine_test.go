package minigame

// Countdown ordering tests run against a store that refuses every connection:
// snapshot writes fail loudly, which is exactly the log-and-continue path the
// timers take, while the in-memory transitions and broadcasts stay observable.

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

type offlineConnector struct{}

func (offlineConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("store offline")
}

func (offlineConnector) Driver() driver.Driver { return nil }

// recordedEmit captures one bus emission in arrival order.
type recordedEmit struct {
	event   ws.EventType
	payload any
}

type busRecorder struct {
	emits []recordedEmit
}

func (b *busRecorder) Emit(event ws.EventType, payload any) {
	b.emits = append(b.emits, recordedEmit{event, payload})
}

func (b *busRecorder) EmitToUser(_ uuid.UUID, event ws.EventType, payload any) {
	b.emits = append(b.emits, recordedEmit{event, payload})
}

func (b *busRecorder) EmitToAdmins(event ws.EventType, payload any) {
	b.emits = append(b.emits, recordedEmit{event, payload})
}

func (b *busRecorder) ConnectedUserIDs() []uuid.UUID { return nil }
func (b *busRecorder) DisconnectUser(uuid.UUID)      {}

// newCountdownEngine builds an engine mid-COUNTDOWN for a quiz round.
func newCountdownEngine(t *testing.T) (*Engine, *busRecorder) {
	t.Helper()
	db := sqlx.NewDb(sql.OpenDB(offlineConnector{}), "postgres")
	rec := &busRecorder{}
	e := &Engine{
		db:     db,
		repo:   repository.NewMiniGameRepository(db),
		bus:    rec,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		st: &state{
			GameType: domain.GameQuiz,
			Phase:    domain.PhaseCountdown,
			Quiz: &quizState{
				Question: domain.QuizQuestion{ID: 1, Duration: 10},
				Answers:  map[uuid.UUID]domain.QuizAnswer{},
			},
		},
	}
	return e, rec
}

// TestCountdownFinalBeat_FiresBeforeGaming pins the wire ordering at the end
// of the countdown: the "0" beat must reach clients before the GAMING sync,
// and the same tick performs the phase flip so the two can never race.
func TestCountdownFinalBeat_FiresBeforeGaming(t *testing.T) {
	e, rec := newCountdownEngine(t)
	defer e.cancelTimers()

	e.countdownTick(context.Background(), domain.GameQuiz, 0)

	if e.st.Phase != domain.PhaseGaming {
		t.Fatalf("phase = %s, want %s", e.st.Phase, domain.PhaseGaming)
	}
	if e.st.EndTime == nil {
		t.Fatal("EndTime not set on entering GAMING")
	}
	if len(rec.emits) < 2 {
		t.Fatalf("recorded %d emits, want the 0 beat followed by a sync", len(rec.emits))
	}
	if rec.emits[0].event != ws.EventMiniGameCountdown {
		t.Errorf("first emit = %s, want %s", rec.emits[0].event, ws.EventMiniGameCountdown)
	}
	if p, ok := rec.emits[0].payload.(ws.CountdownPayload); !ok || p.Countdown != 0 {
		t.Errorf("first emit payload = %#v, want countdown 0", rec.emits[0].payload)
	}
	if rec.emits[1].event != ws.EventMiniGameSync {
		t.Errorf("second emit = %s, want %s", rec.emits[1].event, ws.EventMiniGameSync)
	}
	if v, ok := rec.emits[1].payload.(PublicView); !ok || v.Phase != domain.PhaseGaming {
		t.Errorf("sync payload = %#v, want phase %s", rec.emits[1].payload, domain.PhaseGaming)
	}
}

// TestCountdownTick_StaleAfterPhaseFlip checks that a beat arriving after the
// phase has moved on emits nothing and flips nothing.
func TestCountdownTick_StaleAfterPhaseFlip(t *testing.T) {
	e, rec := newCountdownEngine(t)
	defer e.cancelTimers()
	e.st.Phase = domain.PhaseGaming

	e.countdownTick(context.Background(), domain.GameQuiz, 2)

	if len(rec.emits) != 0 {
		t.Errorf("recorded %d emits after the phase flip, want none", len(rec.emits))
	}
}

// TestCountdownTick_IgnoresOtherGame checks the beat is bound to the game
// that armed it.
func TestCountdownTick_IgnoresOtherGame(t *testing.T) {
	e, rec := newCountdownEngine(t)
	defer e.cancelTimers()

	e.countdownTick(context.Background(), domain.GameMinority, 1)

	if len(rec.emits) != 0 {
		t.Errorf("recorded %d emits for a superseded game, want none", len(rec.emits))
	}
	if e.st.Phase != domain.PhaseCountdown {
		t.Errorf("phase = %s, want %s untouched", e.st.Phase, domain.PhaseCountdown)
	}
}
