package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/platform/config"
	"github.com/easebot/rankledger/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues session tokens for the manual contribution path. A
// single operator identity is configured with a bcrypt password hash; the
// token's subject is the operator's user identifier.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// Login verifies the operator credentials and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, operatorID, password string) (string, error) {
	if s.cfg.OperatorID == "" || s.cfg.OperatorPasswordHash == "" {
		return "", fmt.Errorf("%w: operator login not configured", apperrors.ErrConfiguration)
	}
	idMatch := subtle.ConstantTimeCompare([]byte(operatorID), []byte(s.cfg.OperatorID)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPasswordHash), []byte(password)); err != nil || !idMatch {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrAuthentication)
	}

	token, err := utils.GenerateJWT(operatorID, s.cfg.JWTSecret, s.cfg.JWTExpiryDuration, s.cfg.JWTIssuer)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
