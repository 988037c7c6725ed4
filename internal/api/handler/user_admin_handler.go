package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waterracebox/StockSprintBackend/internal/api/middleware"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// UserAdminHandler exposes the admin user-management surface.
type UserAdminHandler struct {
	userRepo *repository.UserRepository
	bus      service.Broadcaster
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(userRepo *repository.UserRepository, bus service.Broadcaster) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, bus: bus}
}

// List godoc
// GET /api/admin/users?page=&limit=
func (h *UserAdminHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	users, total, err := h.userRepo.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	out := make([]domain.PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToPublicProfile())
	}
	respondList(c, out, total, page, limit)
}

// UpdateRole godoc
// PUT /api/admin/users/:id/role
func (h *UserAdminHandler) UpdateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid user id")
		return
	}
	var body struct {
		Role domain.UserRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if body.Role != domain.RoleUser && body.Role != domain.RoleAdmin {
		respondError(c, http.StatusBadRequest, "VALIDATION", "unknown role")
		return
	}

	if err := h.userRepo.UpdateRole(c.Request.Context(), id, body.Role); err != nil {
		respondDomainError(c, err)
		return
	}
	if u, err := h.userRepo.GetByID(c.Request.Context(), id); err == nil {
		h.bus.EmitToUser(id, ws.EventUserDataUpdated, u.ToPublicProfile())
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "role": body.Role})
}

// Delete godoc
// DELETE /api/admin/users/:id — removes the account and its orders, severing
// any live sessions first.
func (h *UserAdminHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid user id")
		return
	}
	if id == middleware.GetUserID(c) {
		respondError(c, http.StatusBadRequest, "VALIDATION", "cannot delete your own account")
		return
	}

	h.bus.EmitToUser(id, ws.EventForceLogout, nil)
	h.bus.DisconnectUser(id)

	if err := h.userRepo.Delete(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deleted": id})
}

// SetEmployee godoc
// PUT /api/admin/users/:id/employee — staff accounts are excluded from the
// leaderboard and form the red-envelope participant pool.
func (h *UserAdminHandler) SetEmployee(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid user id")
		return
	}
	var body struct {
		IsEmployee bool `json:"is_employee"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	if err := h.userRepo.SetEmployee(c.Request.Context(), id, body.IsEmployee); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "is_employee": body.IsEmployee})
}

// ForceLogout godoc
// POST /api/admin/users/:id/logout — tells the user's sessions to log out,
// then severs them.
func (h *UserAdminHandler) ForceLogout(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION", "invalid user id")
		return
	}

	h.bus.EmitToUser(id, ws.EventForceLogout, nil)
	h.bus.DisconnectUser(id)
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "logged_out": true})
}
