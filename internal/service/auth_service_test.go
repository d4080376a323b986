package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spaceremit/internal/auth"
	"spaceremit/internal/config"
	apperrors "spaceremit/internal/errors"
)

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID, email string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, email, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func testAuthService(t *testing.T, tokenStore auth.TokenStoreInterface) (AuthService, *auth.JWTService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: string(hash),
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	return NewAuthService(cfg, jwtService, tokenStore), jwtService
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "admin@example.com",
			password: "correct-horse",
		},
		{
			name:          "wrong password",
			email:         "admin@example.com",
			password:      "battery-staple",
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:          "wrong email",
			email:         "intruder@example.com",
			password:      "correct-horse",
			expectedError: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenStore := new(MockTokenStore)
			if tt.expectedError == nil {
				tokenStore.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), tt.email, auth.RefreshTokenExpiry).Return(nil)
			}

			svc, jwtService := testAuthService(t, tokenStore)
			access, refresh, err := svc.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, access)
				assert.Empty(t, refresh)
				return
			}

			require.NoError(t, err)
			claims, err := jwtService.ValidateToken(access)
			require.NoError(t, err)
			assert.Equal(t, tt.email, claims.Email)
			assert.Equal(t, "admin", claims.Subject)

			tokenID, err := jwtService.ExtractTokenID(refresh)
			require.NoError(t, err)
			assert.NotEmpty(t, tokenID)
			tokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login_NoAdminConfigured(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", AdminEmail: "admin@example.com"}
	svc := NewAuthService(cfg, auth.NewJWTService(cfg.JWTSecret), new(MockTokenStore))

	_, _, err := svc.Login(context.Background(), "admin@example.com", "anything")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	tokenStore := new(MockTokenStore)
	tokenStore.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), "admin@example.com", auth.RefreshTokenExpiry).Return(nil)

	svc, jwtService := testAuthService(t, tokenStore)
	_, refresh, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	require.NoError(t, err)

	oldID, err := jwtService.ExtractTokenID(refresh)
	require.NoError(t, err)

	tokenStore.On("GetRefreshToken", mock.Anything, oldID).Return("admin@example.com", nil)
	tokenStore.On("DeleteRefreshToken", mock.Anything, oldID).Return(nil)

	access, newRefresh, err := svc.Refresh(context.Background(), refresh)

	require.NoError(t, err)
	assert.NotEmpty(t, access)

	newID, err := jwtService.ExtractTokenID(newRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)
	tokenStore.AssertExpectations(t)
}

func TestAuthService_Refresh_UnknownTokenRejected(t *testing.T) {
	tokenStore := new(MockTokenStore)
	tokenStore.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), "admin@example.com", auth.RefreshTokenExpiry).Return(nil)

	svc, jwtService := testAuthService(t, tokenStore)
	_, refresh, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	require.NoError(t, err)

	tokenID, err := jwtService.ExtractTokenID(refresh)
	require.NoError(t, err)
	tokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return("", assert.AnError)

	_, _, err = svc.Refresh(context.Background(), refresh)

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Refresh_GarbageTokenRejected(t *testing.T) {
	svc, _ := testAuthService(t, new(MockTokenStore))

	_, _, err := svc.Refresh(context.Background(), "not-a-jwt")

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Logout(t *testing.T) {
	tokenStore := new(MockTokenStore)
	tokenStore.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), "admin@example.com", auth.RefreshTokenExpiry).Return(nil)

	svc, jwtService := testAuthService(t, tokenStore)
	_, refresh, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	require.NoError(t, err)

	tokenID, err := jwtService.ExtractTokenID(refresh)
	require.NoError(t, err)
	tokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), refresh))
	tokenStore.AssertExpectations(t)
}
