package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/api/middleware"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// AuthHandler handles registration, login, and profile endpoints.
type AuthHandler struct {
	authSvc      *service.AuthService
	contractRepo *repository.ContractRepository
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, contractRepo *repository.ContractRepository) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, contractRepo: contractRepo}
}

// Register godoc
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, resp)
}

// Login godoc
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Me godoc
// GET /api/me [JWT required]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authSvc.GetMe(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user":   user.ToPublicProfile(),
		"assets": user.Assets(),
	})
}

// UpdateProfile godoc
// PATCH /api/me [JWT required]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var body struct {
		DisplayName *string `json:"display_name"`
		Avatar      *string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	user, err := h.authSvc.UpdateProfile(c.Request.Context(),
		middleware.GetUserID(c), body.DisplayName, body.Avatar)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user.ToPublicProfile())
}

// MyContracts godoc
// GET /api/contracts/my?page=&limit= [JWT required]
func (h *AuthHandler) MyContracts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders, err := h.contractRepo.ListByUser(c.Request.Context(),
		middleware.GetUserID(c), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, orders, len(orders), page, limit)
}
