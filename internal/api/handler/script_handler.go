package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// ScriptHandler exposes the admin surface of the price/news timeline: the
// event schedule, generation, and export/import.
type ScriptHandler struct {
	scriptSvc  *service.ScriptService
	scriptRepo *repository.ScriptRepository
}

// NewScriptHandler creates a ScriptHandler.
func NewScriptHandler(scriptSvc *service.ScriptService, scriptRepo *repository.ScriptRepository) *ScriptHandler {
	return &ScriptHandler{scriptSvc: scriptSvc, scriptRepo: scriptRepo}
}

// ── Events ────────────────────────────────────────────────────────────────────

type eventRequest struct {
	Day   int          `json:"day"   binding:"required,min=1"`
	Title string       `json:"title" binding:"required"`
	News  *string      `json:"news"`
	Trend domain.Trend `json:"trend" binding:"required"`
}

// ListEvents godoc
// GET /api/admin/events
func (h *ScriptHandler) ListEvents(c *gin.Context) {
	events, err := h.scriptRepo.ListEvents(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, events)
}

// CreateEvent godoc
// POST /api/admin/events
func (h *ScriptHandler) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if !req.Trend.IsValid() {
		respondError(c, http.StatusBadRequest, "VALIDATION", "unknown trend")
		return
	}

	ev := &domain.Event{Day: req.Day, Title: req.Title, News: req.News, Trend: req.Trend}
	if err := h.scriptRepo.CreateEvent(c.Request.Context(), ev); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ev)
}

// UpdateEvent godoc
// PUT /api/admin/events/:id
func (h *ScriptHandler) UpdateEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid event id")
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if !req.Trend.IsValid() {
		respondError(c, http.StatusBadRequest, "VALIDATION", "unknown trend")
		return
	}

	ev := &domain.Event{ID: id, Day: req.Day, Title: req.Title, News: req.News, Trend: req.Trend}
	if err := h.scriptRepo.UpdateEvent(c.Request.Context(), ev); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// DeleteEvent godoc
// DELETE /api/admin/events/:id
func (h *ScriptHandler) DeleteEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid event id")
		return
	}
	if err := h.scriptRepo.DeleteEvent(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": id})
}

// ── Script ────────────────────────────────────────────────────────────────────

// Generate godoc
// POST /api/admin/script/generate — rebuild the timeline from the events.
func (h *ScriptHandler) Generate(c *gin.Context) {
	days, err := h.scriptSvc.Generate(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"days": len(days)})
}

// ListDays godoc
// GET /api/admin/script — the full timeline including unpublished headlines.
func (h *ScriptHandler) ListDays(c *gin.Context) {
	days, err := h.scriptSvc.Export(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, days)
}

// Export godoc
// GET /api/admin/script/export
func (h *ScriptHandler) Export(c *gin.Context) {
	days, err := h.scriptSvc.Export(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, days)
}

// Import godoc
// POST /api/admin/script/import — replace the timeline wholesale. Broadcast
// flags reset so the imported run re-publishes its news.
func (h *ScriptHandler) Import(c *gin.Context) {
	var days []domain.ScriptDay
	if err := c.ShouldBindJSON(&days); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if err := h.scriptSvc.Import(c.Request.Context(), days); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"imported": len(days)})
}
