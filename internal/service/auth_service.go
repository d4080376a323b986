package service

import (
	"context"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"spaceremit/internal/auth"
	"spaceremit/internal/config"
	apperrors "spaceremit/internal/errors"
)

// AuthService authenticates the configured admin and manages token rotation.
type AuthService interface {
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	cfg        *config.Config
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new auth service.
func NewAuthService(cfg *config.Config, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		cfg:        cfg,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// Login checks the credentials against the configured admin account and
// issues an access/refresh token pair.
func (s *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", "", apperrors.ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.cfg.AdminEmail)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password))
	if !emailOK || passErr != nil {
		return "", "", apperrors.ErrInvalidCredentials
	}
	return s.issueTokens(ctx, email)
}

// Refresh rotates a refresh token: the old token is invalidated and a fresh
// pair is issued.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return "", "", apperrors.ErrInvalidCredentials
	}
	email, err := s.tokenStore.GetRefreshToken(ctx, tokenID)
	if err != nil {
		return "", "", apperrors.ErrInvalidCredentials
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
		return "", "", err
	}
	return s.issueTokens(ctx, email)
}

// Logout invalidates a refresh token.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidCredentials
	}
	return s.tokenStore.DeleteRefreshToken(ctx, tokenID)
}

func (s *authService) issueTokens(ctx context.Context, email string) (string, string, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(email)
	if err != nil {
		return "", "", err
	}
	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(email)
	if err != nil {
		return "", "", err
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, email, auth.RefreshTokenExpiry); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
