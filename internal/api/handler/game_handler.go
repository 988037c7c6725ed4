package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/api/middleware"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// GameHandler exposes the game clock, leaderboard, and the admin lifecycle
// controls.
type GameHandler struct {
	gameSvc  *service.GameService
	script   *service.ScriptService
	userRepo *repository.UserRepository
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService, script *service.ScriptService, userRepo *repository.UserRepository) *GameHandler {
	return &GameHandler{gameSvc: gameSvc, script: script, userRepo: userRepo}
}

// ── Public ────────────────────────────────────────────────────────────────────

// Status godoc
// GET /api/game/status
func (h *GameHandler) Status(c *gin.Context) {
	st, err := h.gameSvc.State(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"state": st,
		"price": h.script.PriceAt(st),
	})
}

// Leaderboard godoc
// GET /api/leaderboard
func (h *GameHandler) Leaderboard(c *gin.Context) {
	st, err := h.gameSvc.State(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	board, err := h.userRepo.Leaderboard(c.Request.Context(), h.script.PriceAt(st))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, board)
}

// History godoc
// GET /api/game/history — the visible price/news series up to today.
func (h *GameHandler) History(c *gin.Context) {
	st, err := h.gameSvc.State(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, h.script.VisibleHistory(st.CurrentDay))
}

// ── Admin lifecycle ───────────────────────────────────────────────────────────

// Start godoc
// POST /api/admin/game/start
func (h *GameHandler) Start(c *gin.Context) {
	st, err := h.gameSvc.Start(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Stop godoc
// POST /api/admin/game/stop
func (h *GameHandler) Stop(c *gin.Context) {
	st, err := h.gameSvc.Stop(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Resume godoc
// POST /api/admin/game/resume
func (h *GameHandler) Resume(c *gin.Context) {
	st, err := h.gameSvc.Resume(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Restart godoc
// POST /api/admin/game/restart
func (h *GameHandler) Restart(c *gin.Context) {
	st, err := h.gameSvc.Restart(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// Reset godoc
// POST /api/admin/game/reset — factory reset, keeping admins and the caller.
func (h *GameHandler) Reset(c *gin.Context) {
	st, err := h.gameSvc.Reset(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, st)
}

// ── Admin parameters ──────────────────────────────────────────────────────────

// GetParams godoc
// GET /api/admin/game/params
func (h *GameHandler) GetParams(c *gin.Context) {
	g, err := h.gameSvc.Status(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, g)
}

// UpdateParams godoc
// PUT /api/admin/game/params — partial update; a time-ratio change rebases
// the clock in place.
func (h *GameHandler) UpdateParams(c *gin.Context) {
	var req service.ParamsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	g, err := h.gameSvc.UpdateParams(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"params": g,
		"state":  g.StateAt(time.Now().UTC()),
	})
}
