package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/config"
	"github.com/spec-kit/support-stream/internal/domain"
	"github.com/spec-kit/support-stream/internal/repository"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// AuthService handles account registration and login.
type AuthService struct {
	accounts   repository.AccountRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, accounts repository.AccountRepository) *AuthService {
	return &AuthService{
		accounts:   accounts,
		tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// LoginResult carries an issued token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// Register creates an end-user account. Staff accounts are provisioned out
// of band (seed migration or operator tooling), never through this endpoint.
func (s *AuthService) Register(ctx context.Context, handle, email, password string) (*domain.Account, error) {
	handle = strings.TrimSpace(strings.ToLower(handle))
	email = strings.TrimSpace(strings.ToLower(email))
	if handle == "" || email == "" || len(password) < 8 {
		return nil, apperrors.NewValidationError("handle, email and a password of at least 8 characters required", nil)
	}

	if _, err := s.accounts.GetByHandle(ctx, handle); err == nil {
		return nil, apperrors.NewConflict("handle already taken", map[string]any{"handle": handle})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Handle:       handle,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.AccountStatusActive,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if account.Status != domain.AccountStatusActive {
		return nil, apperrors.NewForbidden("account suspended")
	}
	if !auth.CheckPassword(account.PasswordHash, password) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(account)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}
