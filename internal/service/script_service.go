package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// ScriptService — copy-on-reload timeline cache + generator front end
// ──────────────────────────────────────────────────────────────────────────────

// ScriptService owns the in-memory copy of the price/news timeline. The cache
// is replaced wholesale on reload; concurrent readers may see the previous
// snapshot but never a torn one.
type ScriptService struct {
	scriptRepo *repository.ScriptRepository
	gameRepo   *repository.GameRepository
	logger     *slog.Logger

	mu    sync.RWMutex
	days  []domain.ScriptDay
	byDay map[int]int // day → index into days
}

// NewScriptService creates a ScriptService with an empty cache; call Reload
// at boot.
func NewScriptService(scriptRepo *repository.ScriptRepository, gameRepo *repository.GameRepository, logger *slog.Logger) *ScriptService {
	return &ScriptService{
		scriptRepo: scriptRepo,
		gameRepo:   gameRepo,
		logger:     logger,
		byDay:      map[int]int{},
	}
}

// Reload replaces the cache with a fresh snapshot from the store.
func (s *ScriptService) Reload(ctx context.Context) error {
	days, err := s.scriptRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("script_service.Reload: %w", err)
	}
	byDay := make(map[int]int, len(days))
	for i := range days {
		byDay[days[i].Day] = i
	}

	s.mu.Lock()
	s.days = days
	s.byDay = byDay
	s.mu.Unlock()

	s.logger.Info("script cache reloaded", "days", len(days))
	return nil
}

// Len returns the number of cached days.
func (s *ScriptService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

// Day returns a copy of the cached row for the given day.
func (s *ScriptService) Day(day int) (domain.ScriptDay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byDay[day]
	if !ok {
		return domain.ScriptDay{}, false
	}
	return s.days[i], true
}

// PriceAt returns the authoritative price for the given state: the scripted
// price of currentDay, or initialPrice before the game has started.
func (s *ScriptService) PriceAt(st domain.GameState) decimal.Decimal {
	if st.CurrentDay > 0 {
		if d, ok := s.Day(st.CurrentDay); ok {
			return d.Price
		}
	}
	return st.InitialPrice
}

// VisibleHistory projects days 1..currentDay into the client-facing view,
// hiding headlines that have not been broadcast.
func (s *ScriptService) VisibleHistory(currentDay int) []domain.PriceHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PriceHistoryEntry, 0, currentDay)
	for i := range s.days {
		if s.days[i].Day > currentDay {
			break
		}
		out = append(out, s.days[i].HistoryEntry())
	}
	return out
}

// VisibleNews returns the already-published headlines up to currentDay,
// oldest first. Unbroadcast headlines stay hidden even for past days.
func (s *ScriptService) VisibleNews(currentDay int) []domain.PriceHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PriceHistoryEntry
	for i := range s.days {
		d := &s.days[i]
		if d.Day > currentDay {
			break
		}
		if d.IsBroadcasted && d.Title != nil {
			out = append(out, d.HistoryEntry())
		}
	}
	return out
}

// MarkBroadcasted records the publication of a day's headline in the store
// and then in the cache, in that order, so a crash between the two re-reads
// the durable truth.
func (s *ScriptService) MarkBroadcasted(ctx context.Context, day int) error {
	if err := s.scriptRepo.MarkBroadcasted(ctx, day); err != nil {
		return fmt.Errorf("script_service.MarkBroadcasted: %w", err)
	}

	s.mu.Lock()
	if i, ok := s.byDay[day]; ok {
		// Copy-on-write so readers holding the old slice stay consistent.
		days := make([]domain.ScriptDay, len(s.days))
		copy(days, s.days)
		days[i].IsBroadcasted = true
		s.days = days
	}
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Generation / import / export
// ──────────────────────────────────────────────────────────────────────────────

// Generate rebuilds the full timeline from the scheduled events and swaps it
// into the store and cache atomically.
func (s *ScriptService) Generate(ctx context.Context) ([]domain.ScriptDay, error) {
	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("script_service.Generate: %w", err)
	}
	events, err := s.scriptRepo.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("script_service.Generate: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	days := domain.GenerateScript(events, domain.DefaultGeneratorParams(),
		g.TotalDays, g.InitialPrice, g.TimeRatio, rng)

	if err := s.scriptRepo.ReplaceAll(ctx, days); err != nil {
		return nil, fmt.Errorf("script_service.Generate: %w", err)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return days, nil
}

// Export returns the durable timeline for offline grading or backup.
func (s *ScriptService) Export(ctx context.Context) ([]domain.ScriptDay, error) {
	days, err := s.scriptRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("script_service.Export: %w", err)
	}
	return days, nil
}

// Import replaces the timeline with an externally authored one. Broadcast
// flags are cleared so the imported run re-publishes its news; re-importing
// an export therefore reproduces the price series exactly.
func (s *ScriptService) Import(ctx context.Context, days []domain.ScriptDay) error {
	if len(days) == 0 {
		return domain.ErrScriptEmpty
	}
	seen := make(map[int]bool, len(days))
	for i := range days {
		d := &days[i]
		if d.Day < 1 || seen[d.Day] || !d.Price.IsPositive() {
			return fmt.Errorf("%w: day %d", domain.ErrInvalidInput, d.Day)
		}
		if d.Title != nil && d.PublishOffset == nil {
			return fmt.Errorf("%w: day %d has a headline without a publish offset",
				domain.ErrInvalidInput, d.Day)
		}
		seen[d.Day] = true
		d.IsBroadcasted = false
	}

	if err := s.scriptRepo.ReplaceAll(ctx, days); err != nil {
		return fmt.Errorf("script_service.Import: %w", err)
	}
	return s.Reload(ctx)
}
