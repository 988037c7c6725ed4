package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/waterracebox/StockSprintBackend/internal/api/handler"
	"github.com/waterracebox/StockSprintBackend/internal/api/middleware"
	"github.com/waterracebox/StockSprintBackend/internal/config"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc      *service.AuthService
	GameSvc      *service.GameService
	ScriptSvc    *service.ScriptService
	ScriptRepo   *repository.ScriptRepository
	UserRepo     *repository.UserRepository
	ContractRepo *repository.ContractRepository
	MiniGameRepo *repository.MiniGameRepository
	Monitor      *service.BroadcastMonitor
	Hub          *ws.Hub
	Cfg          *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules. Gameplay commands travel over
// the WebSocket; HTTP carries auth, reads, and the admin console.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(deps.AuthSvc, deps.ContractRepo)
	gameH := handler.NewGameHandler(deps.GameSvc, deps.ScriptSvc, deps.UserRepo)
	scriptH := handler.NewScriptHandler(deps.ScriptSvc, deps.ScriptRepo)
	usersH := handler.NewUserAdminHandler(deps.UserRepo, deps.Monitor)
	miniH := handler.NewMiniGameHandler(deps.MiniGameRepo)
	monitorH := handler.NewMonitorHandler(deps.Monitor)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", authH.Register)
			auth.POST("/login", authH.Login)
		}

		// ── Public reads ─────────────────────────────────────────────────────
		api.GET("/game/status", gameH.Status)
		api.GET("/game/history", gameH.History)
		api.GET("/leaderboard", gameH.Leaderboard)

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			authed.GET("/me", authH.Me)
			authed.PATCH("/me", authH.UpdateProfile)
			authed.GET("/contracts/my", authH.MyContracts)
		}

		// ── Admin console ─────────────────────────────────────────────────────
		admin := api.Group("/admin")
		admin.Use(jwtMW, middleware.AdminMiddleware())
		{
			// Game lifecycle and parameters
			game := admin.Group("/game")
			{
				game.POST("/start", gameH.Start)
				game.POST("/stop", gameH.Stop)
				game.POST("/resume", gameH.Resume)
				game.POST("/restart", gameH.Restart)
				game.POST("/reset", gameH.Reset)
				game.GET("/params", gameH.GetParams)
				game.PUT("/params", gameH.UpdateParams)
			}

			// Event schedule
			events := admin.Group("/events")
			{
				events.GET("", scriptH.ListEvents)
				events.POST("", scriptH.CreateEvent)
				events.PUT("/:id", scriptH.UpdateEvent)
				events.DELETE("/:id", scriptH.DeleteEvent)
			}

			// Price/news timeline
			script := admin.Group("/script")
			{
				script.GET("", scriptH.ListDays)
				script.POST("/generate", scriptH.Generate)
				script.GET("/export", scriptH.Export)
				script.POST("/import", scriptH.Import)
			}

			// User management
			users := admin.Group("/users")
			{
				users.GET("", usersH.List)
				users.PUT("/:id/role", usersH.UpdateRole)
				users.PUT("/:id/employee", usersH.SetEmployee)
				users.POST("/:id/logout", usersH.ForceLogout)
				users.DELETE("/:id", usersH.Delete)
			}

			// Mini-game catalogues
			mini := admin.Group("/minigame")
			{
				mini.GET("/prizes", miniH.ListPrizes)
				mini.POST("/prizes", miniH.CreatePrize)
				mini.PUT("/prizes/:id", miniH.UpdatePrize)
				mini.DELETE("/prizes/:id", miniH.DeletePrize)

				mini.GET("/quiz", miniH.ListQuizQuestions)
				mini.POST("/quiz", miniH.CreateQuizQuestion)
				mini.PUT("/quiz/:id", miniH.UpdateQuizQuestion)
				mini.DELETE("/quiz/:id", miniH.DeleteQuizQuestion)

				mini.GET("/minority", miniH.ListMinorityQuestions)
				mini.POST("/minority", miniH.CreateMinorityQuestion)
				mini.PUT("/minority/:id", miniH.UpdateMinorityQuestion)
				mini.DELETE("/minority/:id", miniH.DeleteMinorityQuestion)
			}

			// Broadcast monitor
			admin.GET("/monitor", monitorH.History)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only the configured
// origins (CORS_ORIGIN, comma-separated) are echoed back.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range strings.Split(cfg.Server.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() || allowed["*"] {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
