package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access to the admin surface and mini-game commands.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// IsAdmin returns true only for the admin role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is the domain entity for registered players.
//
// Cash, Debt and DailyBorrowed are decimals rounded to 2 places on every
// write; Cash and Stocks are never negative after a committed transaction.
type User struct {
	ID                  uuid.UUID       `json:"id"                     db:"id"`
	Username            string          `json:"username"               db:"username"`
	PasswordHash        string          `json:"-"                      db:"password_hash"` // never serialised
	DisplayName         string          `json:"display_name"           db:"display_name"`
	Avatar              string          `json:"avatar"                 db:"avatar"`
	Role                UserRole        `json:"role"                   db:"role"`
	Cash                decimal.Decimal `json:"cash"                   db:"cash"`
	Stocks              int64           `json:"stocks"                 db:"stocks"`
	Debt                decimal.Decimal `json:"debt"                   db:"debt"`
	DailyBorrowed       decimal.Decimal `json:"daily_borrowed"         db:"daily_borrowed"`
	FirstSignIn         bool            `json:"first_sign_in"          db:"first_sign_in"`
	IsEmployee          bool            `json:"is_employee"            db:"is_employee"`
	AvatarUpdateCount   int             `json:"avatar_update_count"    db:"avatar_update_count"`
	LoanSharkVisitCount int             `json:"loan_shark_visit_count" db:"loan_shark_visit_count"`
	CreatedAt           time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"             db:"updated_at"`
}

// PublicProfile is a user view safe to expose via API (no password hash).
type PublicProfile struct {
	ID          uuid.UUID       `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Avatar      string          `json:"avatar"`
	Role        UserRole        `json:"role"`
	Cash        decimal.Decimal `json:"cash"`
	Stocks      int64           `json:"stocks"`
	Debt        decimal.Decimal `json:"debt"`
	IsEmployee  bool            `json:"is_employee"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToPublicProfile converts a User to its public-safe representation.
func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Role:        u.Role,
		Cash:        u.Cash,
		Stocks:      u.Stocks,
		Debt:        u.Debt,
		IsEmployee:  u.IsEmployee,
		CreatedAt:   u.CreatedAt,
	}
}

// TotalAssets values the user's position at the given price: cash plus spot
// holdings plus margins frozen in still-open contracts, minus debt.
func (u *User) TotalAssets(price decimal.Decimal, openMargins decimal.Decimal) decimal.Decimal {
	stocks := price.Mul(decimal.NewFromInt(u.Stocks))
	return RoundMoney(u.Cash.Add(stocks).Add(openMargins).Sub(u.Debt))
}

// ──────────────────────────────────────────────────────────────────────────────
// AssetsSnapshot — per-user balance view pushed over the bus
// ──────────────────────────────────────────────────────────────────────────────

// AssetsSnapshot is the ASSETS_UPDATE payload.
type AssetsSnapshot struct {
	Cash          decimal.Decimal `json:"cash"`
	Stocks        int64           `json:"stocks"`
	Debt          decimal.Decimal `json:"debt"`
	DailyBorrowed decimal.Decimal `json:"daily_borrowed"`
}

// Assets builds the snapshot from the user row.
func (u *User) Assets() AssetsSnapshot {
	return AssetsSnapshot{
		Cash:          u.Cash,
		Stocks:        u.Stocks,
		Debt:          u.Debt,
		DailyBorrowed: u.DailyBorrowed,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// LeaderboardEntry
// ──────────────────────────────────────────────────────────────────────────────

// LeaderboardEntry is one row of the top-100 ranking broadcast on every day
// boundary and after mini-game settlements.
type LeaderboardEntry struct {
	UserID      uuid.UUID       `json:"user_id"      db:"user_id"`
	DisplayName string          `json:"display_name" db:"display_name"`
	Avatar      string          `json:"avatar"       db:"avatar"`
	TotalAssets decimal.Decimal `json:"total_assets" db:"total_assets"`
	Rank        int             `json:"rank"         db:"rank"`
}
