// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8000"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
	CORSOrigin   string        // allowed origin for browser clients; "*" in dev

	// Ops console (separate binary).
	BackofficePort       string // e.g. "8081"
	BackofficeAllowedIPs string // comma-separated allowlist; empty allows all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// AuthConfig holds JWT signing and admin-registration settings.
type AuthConfig struct {
	JWTSecret   string        // must be set
	TokenTTL    time.Duration // default 72h (game sessions span days)
	AdminSecret string        // shared key that promotes a registration to ADMIN
}

// GameConfig holds the factory defaults applied when the game_status row is
// first created. Runtime changes go through the admin surface, not the env.
type GameConfig struct {
	TimeRatio         int64   // real seconds per in-game day
	TotalDays         int
	InitialPrice      float64
	InitialCash       float64
	MaxLeverage       int
	DailyInterestRate float64 // applied to debt at each day boundary
	MaxLoanAmount     float64 // daily borrow quota per user
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Game   GameConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.IsProd() && c.Auth.AdminSecret == "" {
		errs = append(errs, errors.New("ADMIN_SECRET must be set in production"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}

	if c.Game.TimeRatio <= 0 {
		errs = append(errs, fmt.Errorf("GAME_TIME_RATIO must be positive, got %d", c.Game.TimeRatio))
	}
	if c.Game.TotalDays <= 0 {
		errs = append(errs, fmt.Errorf("GAME_TOTAL_DAYS must be positive, got %d", c.Game.TotalDays))
	}
	if c.Game.MaxLeverage < 1 {
		errs = append(errs, fmt.Errorf("GAME_MAX_LEVERAGE must be >= 1, got %d", c.Game.MaxLeverage))
	}
	if c.Game.DailyInterestRate < 0 || c.Game.DailyInterestRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"GAME_DAILY_INTEREST_RATE must be in [0, 1), got %.4f", c.Game.DailyInterestRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	// Best-effort .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:         getEnv("SERVER_PORT", "8000"),
		Env:          getEnv("ENVIRONMENT", "development"),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		CORSOrigin:   getEnv("CORS_ORIGIN", "*"),

		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "stocksprint"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Auth ──────────────────────────────────────────────────────────────────
	cfg.Auth = AuthConfig{
		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    getDuration("JWT_TOKEN_TTL", 72*time.Hour),
		AdminSecret: getEnv("ADMIN_SECRET", ""),
	}

	// ── Game defaults ─────────────────────────────────────────────────────────
	ratio, err := getInt("GAME_TIME_RATIO", 300)
	if err != nil {
		return nil, fmt.Errorf("GAME_TIME_RATIO: %w", err)
	}
	totalDays, err := getInt("GAME_TOTAL_DAYS", 120)
	if err != nil {
		return nil, fmt.Errorf("GAME_TOTAL_DAYS: %w", err)
	}
	initialPrice, err := getFloat("GAME_INITIAL_PRICE", 100)
	if err != nil {
		return nil, fmt.Errorf("GAME_INITIAL_PRICE: %w", err)
	}
	initialCash, err := getFloat("GAME_INITIAL_CASH", 10000)
	if err != nil {
		return nil, fmt.Errorf("GAME_INITIAL_CASH: %w", err)
	}
	maxLeverage, err := getInt("GAME_MAX_LEVERAGE", 10)
	if err != nil {
		return nil, fmt.Errorf("GAME_MAX_LEVERAGE: %w", err)
	}
	interestRate, err := getFloat("GAME_DAILY_INTEREST_RATE", 0.001)
	if err != nil {
		return nil, fmt.Errorf("GAME_DAILY_INTEREST_RATE: %w", err)
	}
	maxLoan, err := getFloat("GAME_MAX_LOAN_AMOUNT", 5000)
	if err != nil {
		return nil, fmt.Errorf("GAME_MAX_LOAN_AMOUNT: %w", err)
	}

	cfg.Game = GameConfig{
		TimeRatio:         int64(ratio),
		TotalDays:         totalDays,
		InitialPrice:      initialPrice,
		InitialCash:       initialCash,
		MaxLeverage:       maxLeverage,
		DailyInterestRate: interestRate,
		MaxLoanAmount:     maxLoan,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
