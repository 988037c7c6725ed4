package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/waterracebox/StockSprintBackend/internal/config"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
	"github.com/waterracebox/StockSprintBackend/internal/repository"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// RegisterRequest contains the fields required to create a new account. An
// AdminKey matching the configured secret promotes the account to ADMIN.
type RegisterRequest struct {
	Username    string `json:"username"     binding:"required,min=3,max=50"`
	Password    string `json:"password"     binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"max=50"`
	AdminKey    string `json:"admin_key"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	User        domain.PublicProfile `json:"user"`
	AccessToken string               `json:"access_token"`
}

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims extends jwt.RegisteredClaims with the user's role, which the WS
// hub and admin middleware read without a database round trip.
type AppClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService handles registration, login, profile updates, and JWT issuance.
type AuthService struct {
	userRepo *repository.UserRepository
	gameRepo *repository.GameRepository
	cfg      *config.Config
	bus      Broadcaster
}

// NewAuthService creates an AuthService.
func NewAuthService(userRepo *repository.UserRepository, gameRepo *repository.GameRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		gameRepo: gameRepo,
		cfg:      cfg,
	}
}

// SetBroadcaster injects the WS bus post-construction.
func (s *AuthService) SetBroadcaster(b Broadcaster) { s.bus = b }

// ──────────────────────────────────────────────────────────────────────────────
// Register / Login
// ──────────────────────────────────────────────────────────────────────────────

// Register creates a new account seeded with the configured starting cash. A
// non-empty AdminKey must match the admin secret exactly; a wrong key fails
// the whole registration rather than silently downgrading to a player account.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	role := domain.RoleUser
	if req.AdminKey != "" {
		if req.AdminKey != s.cfg.Auth.AdminSecret {
			return nil, domain.ErrAdminKeyMismatch
		}
		role = domain.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Register: hash: %w", err)
	}

	g, err := s.gameRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Register: %w", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		Cash:         g.InitialCash,
		FirstSignIn:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.signToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service.Register: token: %w", err)
	}
	return &AuthResponse{User: user.ToPublicProfile(), AccessToken: token}, nil
}

// Login validates credentials and returns a fresh access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Map not-found to a generic credential error to prevent user enumeration.
		return nil, domain.ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.signToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: token: %w", err)
	}
	return &AuthResponse{User: user.ToPublicProfile(), AccessToken: token}, nil
}

// GetMe returns the authenticated user's full profile.
func (s *AuthService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Profile updates
// ──────────────────────────────────────────────────────────────────────────────

// UpdateProfile changes display name and/or avatar. An avatar change bumps the
// per-run avatar counter; completing first sign-in clears the flag. Other
// sessions of the same user are told to refetch.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, avatar *string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if displayName != nil {
		if *displayName == "" {
			return nil, fmt.Errorf("%w: display name must not be empty", domain.ErrInvalidInput)
		}
		user.DisplayName = *displayName
	}
	if avatar != nil {
		user.Avatar = *avatar
		user.AvatarUpdateCount++
	}
	user.FirstSignIn = false

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.EmitToUser(userID, ws.EventUserDataUpdated, user.ToPublicProfile())
	}
	return user, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Token helpers
// ──────────────────────────────────────────────────────────────────────────────

// signToken creates one signed HS256 access token carrying the role claim.
func (s *AuthService) signToken(userID uuid.UUID, role string) (string, error) {
	now := time.Now().UTC()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Auth.TokenTTL)),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// ParseAccessToken validates the token signature, algorithm, and expiry. It is
// exported for use by the JWT middleware.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	secret := []byte(s.cfg.Auth.JWTSecret)
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
