// Package scheduler runs the 1 Hz game tick: the per-second state broadcast,
// scheduled news publication, and day-boundary detection that triggers the
// settlement pipeline.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// Scheduler drives the global market-day clock. Call Start(ctx) once from
// main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	gameRepo   *repository.GameRepository
	script     *service.ScriptService
	settlement *service.SettlementService
	bus        service.Broadcaster
	logger     *slog.Logger

	// prevDay is −1 until the first tick of a running game; the settlement
	// pipeline fires when the derived day moves past it.
	prevDay     int
	prevStarted bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	gameRepo *repository.GameRepository,
	script *service.ScriptService,
	settlement *service.SettlementService,
	bus service.Broadcaster,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		gameRepo:   gameRepo,
		script:     script,
		settlement: settlement,
		bus:        bus,
		logger:     logger,
		prevDay:    -1,
	}
}

// Start launches the tick loop goroutine. It returns immediately; the loop
// runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.tickLoop(ctx)
	s.logger.Info("scheduler started")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tickLoop: shutting down")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is the inner body of the loop, extracted so its defer/recover catches
// panics without killing the loop.
func (s *Scheduler) tick(ctx context.Context) {
	defer s.recoverAndLog("tick")

	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		s.logger.Error("tick: read game status failed", "error", err)
		return
	}
	st := g.StateAt(time.Now().UTC())

	// A fresh start begins a new run: forget the previous run's last day so
	// the first tick does not look like a day transition.
	if st.IsStarted && !s.prevStarted {
		s.prevDay = -1
	}
	s.prevStarted = st.IsStarted

	s.bus.Emit(ws.EventGameStateUpdate, ws.GameStatePayload{
		CurrentDay:    st.CurrentDay,
		IsGameStarted: st.IsStarted,
		Countdown:     st.SecondsToNextDay,
		TotalDays:     st.TotalDays,
		MaxLeverage:   st.MaxLeverage,
	})

	if !st.IsStarted {
		return
	}

	if s.prevDay >= 0 && st.CurrentDay != s.prevDay {
		s.settlement.RunDayBoundary(ctx, s.prevDay, st.CurrentDay)
	}
	s.prevDay = st.CurrentDay

	s.publishNews(ctx, st.CurrentDay, st.SecondInDay)
}

// publishNews emits the day's headline exactly once, at its scheduled second.
// The broadcast flag is persisted before the emit so a crash cannot publish
// twice.
func (s *Scheduler) publishNews(ctx context.Context, day int, secondInDay int64) {
	d, ok := s.script.Day(day)
	if !ok || !d.HasNews() || d.IsBroadcasted {
		return
	}
	if secondInDay != *d.PublishOffset {
		return
	}

	if err := s.script.MarkBroadcasted(ctx, day); err != nil {
		s.logger.Error("tick: mark news broadcast failed", "day", day, "error", err)
		return
	}
	s.bus.Emit(ws.EventNewsUpdate, ws.NewsUpdatePayload{
		Day:     day,
		Title:   *d.Title,
		Content: d.News,
	})
	s.logger.Info("news published", "day", day, "title", *d.Title)
}

// recoverAndLog catches unexpected panics in a tick, logs them, and lets the
// loop continue.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop", "loop", loop, "panic", r)
	}
}
