package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waterracebox/StockSprintBackend/internal/repository"
)

// UserInspectHandler serves the read-only /admin/users views. Unlike the
// public API these expose full balances, including debt and the anti-abuse
// counters.
type UserInspectHandler struct {
	userRepo     *repository.UserRepository
	contractRepo *repository.ContractRepository
}

// NewUserInspectHandler creates a UserInspectHandler.
func NewUserInspectHandler(userRepo *repository.UserRepository, contractRepo *repository.ContractRepository) *UserInspectHandler {
	return &UserInspectHandler{userRepo: userRepo, contractRepo: contractRepo}
}

// List godoc
// GET /admin/users?page=&limit=
func (h *UserInspectHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)

	users, total, err := h.userRepo.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, users, total, page, limit)
}

// Detail godoc
// GET /admin/users/:id — the account plus its open positions.
func (h *UserInspectHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid user id")
		return
	}

	ctx := c.Request.Context()
	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "user not found")
		return
	}

	open, err := h.contractRepo.ListOpenByUser(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user":           user,
		"open_contracts": open,
	})
}
