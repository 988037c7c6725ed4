package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/repository"
)

// ExposureHandler serves /admin/exposure: open leveraged positions grouped
// by settlement day, the raw material for eyeballing what the next day
// boundary will pay out.
type ExposureHandler struct {
	contractRepo *repository.ContractRepository
	gameRepo     *repository.GameRepository
}

// NewExposureHandler creates an ExposureHandler.
func NewExposureHandler(contractRepo *repository.ContractRepository, gameRepo *repository.GameRepository) *ExposureHandler {
	return &ExposureHandler{contractRepo: contractRepo, gameRepo: gameRepo}
}

// Exposure godoc
// GET /admin/exposure
func (h *ExposureHandler) Exposure(c *gin.Context) {
	ctx := c.Request.Context()

	rows, err := h.contractRepo.OpenExposure(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	currentDay := 0
	if g, err := h.gameRepo.Get(ctx); err == nil {
		currentDay = g.StateAt(time.Now().UTC()).CurrentDay
	}

	totalMargin := decimal.Zero
	for _, row := range rows {
		totalMargin = totalMargin.Add(row.Margin)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"current_day":  currentDay,
		"rows":         rows,
		"total_margin": totalMargin,
	})
}
