package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-stream/internal/config"
	"github.com/spec-kit/support-stream/internal/domain"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

func newAuthService() (*AuthService, *fakeAccountRepo) {
	accounts := &fakeAccountRepo{accounts: map[string]domain.Account{}}
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}, accounts)
	return svc, accounts
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	account, err := svc.Register(ctx, "Alice", "Alice@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Handle)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, domain.RoleUser, account.Role)
	assert.NotEqual(t, "correct horse", account.PasswordHash)

	result, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	claims, err := svc.TokenManager().ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Handle)
}

func TestRegisterDuplicateHandle(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "battery staple")
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestRegisterWeakPassword(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "short")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestLoginFailures(t *testing.T) {
	svc, accounts := newAuthService()
	ctx := context.Background()

	_, err := svc.Login(ctx, "ghost@example.com", "whatever")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, err = svc.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "wrong password")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	suspended := accounts.accounts["alice"]
	suspended.Status = domain.AccountStatusSuspended
	accounts.accounts["alice"] = suspended

	_, err = svc.Login(ctx, "alice@example.com", "correct horse")
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}
