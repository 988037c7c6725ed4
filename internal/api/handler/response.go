package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError translates a service error into the wire error code and
// HTTP status. Internal errors are sanitised.
func respondDomainError(c *gin.Context, err error) {
	kind := domain.ErrorKind(err)
	msg := err.Error()

	var status int
	switch kind {
	case "VALIDATION", "INSUFFICIENT_FUNDS", "INSUFFICIENT_HOLDINGS", "QUOTA_EXCEEDED":
		status = http.StatusBadRequest
	case "AUTH":
		status = http.StatusUnauthorized
	case "PERMISSION":
		status = http.StatusForbidden
	case "NOT_FOUND":
		status = http.StatusNotFound
	case "PRECONDITION", "CONFLICT":
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		msg = "internal error"
	}
	respondError(c, status, kind, msg)
}
