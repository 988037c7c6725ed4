package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
)

// MiniGameHandler exposes the admin CRUD for the mini-game catalogues:
// red-envelope prizes, quiz questions, and minority questions. The live game
// itself is driven over the WebSocket admin commands, not HTTP.
type MiniGameHandler struct {
	repo *repository.MiniGameRepository
}

// NewMiniGameHandler creates a MiniGameHandler.
func NewMiniGameHandler(repo *repository.MiniGameRepository) *MiniGameHandler {
	return &MiniGameHandler{repo: repo}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid id")
		return 0, false
	}
	return id, true
}

// ── Red-envelope prizes ───────────────────────────────────────────────────────

// ListPrizes godoc
// GET /api/admin/minigame/prizes
func (h *MiniGameHandler) ListPrizes(c *gin.Context) {
	items, err := h.repo.ListRedEnvelopeItems(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, items)
}

// CreatePrize godoc
// POST /api/admin/minigame/prizes
func (h *MiniGameHandler) CreatePrize(c *gin.Context) {
	var it domain.RedEnvelopeItem
	if err := c.ShouldBindJSON(&it); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if it.Type != domain.PacketPhysical && it.Type != domain.PacketCash {
		respondError(c, http.StatusBadRequest, "VALIDATION", "type must be PHYSICAL or CASH")
		return
	}
	if err := h.repo.CreateRedEnvelopeItem(c.Request.Context(), &it); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, it)
}

// UpdatePrize godoc
// PUT /api/admin/minigame/prizes/:id
func (h *MiniGameHandler) UpdatePrize(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var it domain.RedEnvelopeItem
	if err := c.ShouldBindJSON(&it); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	it.ID = id
	if err := h.repo.UpdateRedEnvelopeItem(c.Request.Context(), &it); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, it)
}

// DeletePrize godoc
// DELETE /api/admin/minigame/prizes/:id
func (h *MiniGameHandler) DeletePrize(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteRedEnvelopeItem(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": id})
}

// ── Quiz questions ────────────────────────────────────────────────────────────

// ListQuizQuestions godoc
// GET /api/admin/minigame/quiz
func (h *MiniGameHandler) ListQuizQuestions(c *gin.Context) {
	qs, err := h.repo.ListQuizQuestions(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, qs)
}

// CreateQuizQuestion godoc
// POST /api/admin/minigame/quiz
func (h *MiniGameHandler) CreateQuizQuestion(c *gin.Context) {
	var q domain.QuizQuestion
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if !domain.IsVoteOption(q.CorrectAnswer) {
		respondError(c, http.StatusBadRequest, "VALIDATION", "correct answer must be A, B, C or D")
		return
	}
	if err := h.repo.CreateQuizQuestion(c.Request.Context(), &q); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, q)
}

// UpdateQuizQuestion godoc
// PUT /api/admin/minigame/quiz/:id
func (h *MiniGameHandler) UpdateQuizQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var q domain.QuizQuestion
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	q.ID = id
	if err := h.repo.UpdateQuizQuestion(c.Request.Context(), &q); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, q)
}

// DeleteQuizQuestion godoc
// DELETE /api/admin/minigame/quiz/:id
func (h *MiniGameHandler) DeleteQuizQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteQuizQuestion(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": id})
}

// ── Minority questions ────────────────────────────────────────────────────────

// ListMinorityQuestions godoc
// GET /api/admin/minigame/minority
func (h *MiniGameHandler) ListMinorityQuestions(c *gin.Context) {
	qs, err := h.repo.ListMinorityQuestions(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, qs)
}

// CreateMinorityQuestion godoc
// POST /api/admin/minigame/minority
func (h *MiniGameHandler) CreateMinorityQuestion(c *gin.Context) {
	var q domain.MinorityQuestion
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if err := h.repo.CreateMinorityQuestion(c.Request.Context(), &q); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, q)
}

// UpdateMinorityQuestion godoc
// PUT /api/admin/minigame/minority/:id
func (h *MiniGameHandler) UpdateMinorityQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var q domain.MinorityQuestion
	if err := c.ShouldBindJSON(&q); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	q.ID = id
	if err := h.repo.UpdateMinorityQuestion(c.Request.Context(), &q); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, q)
}

// DeleteMinorityQuestion godoc
// DELETE /api/admin/minigame/minority/:id
func (h *MiniGameHandler) DeleteMinorityQuestion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteMinorityQuestion(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": id})
}
