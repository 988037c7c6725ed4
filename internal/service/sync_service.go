package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
)

// MiniGameStateProvider supplies the current mini-game view for the initial
// sync. Implemented by the mini-game engine.
type MiniGameStateProvider interface {
	PublicState(userID uuid.UUID) any
}

// ──────────────────────────────────────────────────────────────────────────────
// SyncService — FULL_SYNC_STATE assembly
// ──────────────────────────────────────────────────────────────────────────────

// FullSyncState is the complete world view a client needs after connecting:
// clock, price, history, the user's own balances and open contracts, the
// already-published news, the leaderboard, and any mini-game in progress.
type FullSyncState struct {
	GameState       domain.GameState           `json:"gameState"`
	Price           decimal.Decimal            `json:"price"`
	History         []domain.PriceHistoryEntry `json:"history"`
	Assets          domain.AssetsSnapshot      `json:"assets"`
	Profile         domain.PublicProfile       `json:"profile"`
	ActiveContracts []domain.ContractOrder     `json:"activeContracts"`
	News            []domain.PriceHistoryEntry `json:"news"`
	Leaderboard     []domain.LeaderboardEntry  `json:"leaderboard"`
	MiniGame        any                        `json:"miniGame,omitempty"`
}

// SyncService builds the FULL_SYNC_STATE snapshot sent exactly once per
// connection.
type SyncService struct {
	userRepo     *repository.UserRepository
	gameRepo     *repository.GameRepository
	contractRepo *repository.ContractRepository
	script       *ScriptService
	miniGame     MiniGameStateProvider
	logger       *slog.Logger
}

// NewSyncService creates a SyncService.
func NewSyncService(
	userRepo *repository.UserRepository,
	gameRepo *repository.GameRepository,
	contractRepo *repository.ContractRepository,
	script *ScriptService,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		userRepo:     userRepo,
		gameRepo:     gameRepo,
		contractRepo: contractRepo,
		script:       script,
		logger:       logger,
	}
}

// SetMiniGameProvider injects the mini-game engine post-construction.
func (s *SyncService) SetMiniGameProvider(p MiniGameStateProvider) { s.miniGame = p }

// FullSync assembles the snapshot for one user. The pieces are read without a
// shared transaction; each is individually consistent and the per-second tick
// immediately reconciles any skew.
func (s *SyncService) FullSync(ctx context.Context, userID uuid.UUID) (any, error) {
	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	st := g.StateAt(time.Now().UTC())

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := FullSyncState{
		GameState: st,
		Price:     s.script.PriceAt(st),
		History:   s.script.VisibleHistory(st.CurrentDay),
		Assets:    user.Assets(),
		Profile:   user.ToPublicProfile(),
		News:      s.script.VisibleNews(st.CurrentDay),
	}

	if st.CurrentDay >= 1 {
		open, err := s.contractRepo.ListOpenByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for i := range open {
			if open[i].Day == st.CurrentDay {
				out.ActiveContracts = append(out.ActiveContracts, open[i])
			}
		}
	}

	board, err := s.userRepo.Leaderboard(ctx, out.Price)
	if err != nil {
		// A missing leaderboard should not block the connection.
		s.logger.Warn("full sync: leaderboard unavailable", "user_id", userID, "error", err)
	} else {
		out.Leaderboard = board
	}

	if s.miniGame != nil {
		out.MiniGame = s.miniGame.PublicState(userID)
	}
	return out, nil
}
