package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// DashboardHandler serves the /admin/dashboard endpoint: the game clock, the
// aggregate balance sheet, open exposure, and the mini-game phase in one
// response.
type DashboardHandler struct {
	gameRepo     *repository.GameRepository
	userRepo     *repository.UserRepository
	contractRepo *repository.ContractRepository
	miniGameRepo *repository.MiniGameRepository
	script       *service.ScriptService
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	gameRepo *repository.GameRepository,
	userRepo *repository.UserRepository,
	contractRepo *repository.ContractRepository,
	miniGameRepo *repository.MiniGameRepository,
	script *service.ScriptService,
) *DashboardHandler {
	return &DashboardHandler{
		gameRepo:     gameRepo,
		userRepo:     userRepo,
		contractRepo: contractRepo,
		miniGameRepo: miniGameRepo,
		script:       script,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	g, err := h.gameRepo.Get(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	st := g.StateAt(time.Now().UTC())

	totals, err := h.userRepo.Totals(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	// Exposure summary collapses the per-day rows into grand totals.
	var openOrders int
	openMargin := decimal.Zero
	exposure, _ := h.contractRepo.OpenExposure(ctx)
	for _, row := range exposure {
		openOrders += row.Orders
		openMargin = openMargin.Add(row.Margin)
	}

	// The mini-game snapshot is optional; an idle engine has no row.
	var miniGame gin.H
	if rt, err := h.miniGameRepo.LoadRuntime(ctx); err == nil && rt != nil {
		miniGame = gin.H{
			"game_type": rt.GameType,
			"phase":     rt.Phase,
			"end_time":  rt.EndTime,
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"game": gin.H{
			"state": st,
			"price": h.script.PriceAt(st),
		},
		"totals": totals,
		"contracts": gin.H{
			"open_orders": openOrders,
			"open_margin": openMargin,
		},
		"mini_game": miniGame,
	})
}
