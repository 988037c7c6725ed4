// Package main is the entry point for the StockSprint ops console. It serves
// read-only admin views on its own port, protected by an IP allowlist and the
// ADMIN role.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/waterracebox/StockSprintBackend/internal/backoffice"
	"github.com/waterracebox/StockSprintBackend/internal/config"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting stocksprint ops console",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Repositories and services ─────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	gameRepo := repository.NewGameRepository(db)
	contractRepo := repository.NewContractRepository(db)
	miniGameRepo := repository.NewMiniGameRepository(db)
	scriptRepo := repository.NewScriptRepository(db)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scriptSvc := service.NewScriptService(scriptRepo, gameRepo, logger)
	if err = scriptSvc.Reload(ctx); err != nil {
		logger.Error("script cache load failed", "err", err)
		os.Exit(1)
	}

	authSvc := service.NewAuthService(userRepo, gameRepo, cfg)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupOpsRouter(backoffice.OpsDeps{
		AuthSvc:      authSvc,
		ScriptSvc:    scriptSvc,
		UserRepo:     userRepo,
		GameRepo:     gameRepo,
		ContractRepo: contractRepo,
		MiniGameRepo: miniGameRepo,
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("ops console listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops console server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops console shutdown error", "err", err)
	}

	db.Close()
	logger.Info("ops console stopped cleanly")
}
