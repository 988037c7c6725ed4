// Package backoffice is the read-only ops console served by cmd/backoffice.
// It runs on its own port behind an IP allowlist and never mutates game
// state; every write goes through the main API's admin surface.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/backoffice/handler"
	"github.com/waterracebox/StockSprintBackend/internal/config"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

// OpsDeps bundles every dependency needed for the ops router.
type OpsDeps struct {
	AuthSvc      *service.AuthService
	ScriptSvc    *service.ScriptService
	UserRepo     *repository.UserRepository
	GameRepo     *repository.GameRepository
	ContractRepo *repository.ContractRepository
	MiniGameRepo *repository.MiniGameRepository
	Cfg          *config.Config
}

// SetupOpsRouter creates the ops Gin engine.
func SetupOpsRouter(deps OpsDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.GameRepo, deps.UserRepo, deps.ContractRepo, deps.MiniGameRepo, deps.ScriptSvc)
	expoH := handler.NewExposureHandler(deps.ContractRepo, deps.GameRepo)
	userH := handler.NewUserInspectHandler(deps.UserRepo, deps.ContractRepo)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		admin.GET("/exposure", expoH.Exposure)

		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the ADMIN role.
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !domain.UserRole(claims.Role).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
