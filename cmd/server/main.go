// Package main is the entry point for the StockSprint game server. It wires
// together the repositories, services, WebSocket hub, mini-game engine, and
// the tick scheduler, then serves HTTP until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"

	"github.com/waterracebox/StockSprintBackend/internal/api"
	"github.com/waterracebox/StockSprintBackend/internal/config"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/minigame"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/scheduler"
	"github.com/waterracebox/StockSprintBackend/internal/service"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting stocksprint server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	gameRepo := repository.NewGameRepository(db)
	contractRepo := repository.NewContractRepository(db)
	scriptRepo := repository.NewScriptRepository(db)
	miniGameRepo := repository.NewMiniGameRepository(db)

	// ── 5. Boot context ───────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed the game_status singleton from env defaults on first boot; an
	// existing row wins so admin-tuned parameters survive restarts.
	if err = gameRepo.Seed(ctx, gameDefaults(cfg)); err != nil {
		logger.Error("game status seed failed", "err", err)
		os.Exit(1)
	}

	// ── 6. Services ───────────────────────────────────────────────────────────
	scriptSvc := service.NewScriptService(scriptRepo, gameRepo, logger)
	if err = scriptSvc.Reload(ctx); err != nil {
		logger.Error("script cache load failed", "err", err)
		os.Exit(1)
	}

	authSvc := service.NewAuthService(userRepo, gameRepo, cfg)
	tradeSvc := service.NewTradeService(db, userRepo, gameRepo, contractRepo, scriptSvc, logger)
	gameSvc := service.NewGameService(db, userRepo, gameRepo, contractRepo, scriptRepo, scriptSvc, logger)
	syncSvc := service.NewSyncService(userRepo, gameRepo, contractRepo, scriptSvc, logger)
	engine := minigame.NewEngine(db, userRepo, gameRepo, miniGameRepo, scriptSvc, logger)
	syncSvc.SetMiniGameProvider(engine)

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	jwtSecret := []byte(cfg.Auth.JWTSecret)
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(jwtSecret, allowedOrigins, logger)
	hub.SetSyncProvider(syncSvc)
	hub.SetCommandRouter(ws.NewCommandRouter(tradeSvc, engine, logger))

	// Every service emits through the monitor so the admin console sees the
	// recent broadcast history.
	bus := service.NewBroadcastMonitor(hub)
	tradeSvc.SetBroadcaster(bus)
	gameSvc.SetBroadcaster(bus)
	authSvc.SetBroadcaster(bus)
	engine.SetBroadcaster(bus)

	settlementSvc := service.NewSettlementService(db, userRepo, gameRepo, contractRepo, scriptSvc, bus, logger)

	go hub.Run()
	logger.Info("websocket hub started")

	// Re-arm any mini-game round that was live when the previous process died.
	if err = engine.Rehydrate(ctx); err != nil {
		logger.Error("mini-game rehydrate failed", "err", err)
	}

	// ── 8. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(gameRepo, scriptSvc, settlementSvc, bus, logger)
	sched.Start(ctx)

	// ── 9. HTTP router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:      authSvc,
		GameSvc:      gameSvc,
		ScriptSvc:    scriptSvc,
		ScriptRepo:   scriptRepo,
		UserRepo:     userRepo,
		ContractRepo: contractRepo,
		MiniGameRepo: miniGameRepo,
		Monitor:      bus,
		Hub:          hub,
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Serve ─────────────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// gameDefaults maps the env-derived game configuration onto a factory status
// row for the first-boot seed.
func gameDefaults(cfg *config.Config) *domain.GameStatus {
	g := domain.DefaultGameStatus()
	g.TimeRatio = cfg.Game.TimeRatio
	g.TotalDays = cfg.Game.TotalDays
	g.InitialPrice = decimal.NewFromFloat(cfg.Game.InitialPrice)
	g.InitialCash = decimal.NewFromFloat(cfg.Game.InitialCash)
	g.MaxLeverage = cfg.Game.MaxLeverage
	g.DailyInterestRate = decimal.NewFromFloat(cfg.Game.DailyInterestRate)
	g.MaxLoanAmount = decimal.NewFromFloat(cfg.Game.MaxLoanAmount)
	return g
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
