package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/livequestions/ama-api/internal/core/domain"
)

// AuthService resolves a display name into a session identity. Anyone may
// join as a participant; the configured admin name additionally requires the
// admin password, checked against its bcrypt hash.
type AuthService struct {
	adminName         string
	adminPasswordHash string
	jwtSecret         string
	tokenTTL          time.Duration
}

func NewAuthService(adminName, adminPasswordHash, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		adminName:         strings.TrimSpace(adminName),
		adminPasswordHash: adminPasswordHash,
		jwtSecret:         jwtSecret,
		tokenTTL:          tokenTTL,
	}
}

func (s *AuthService) Login(_ context.Context, name, password string) (string, domain.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Identity{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(name) > maxNameLength {
		return "", domain.Identity{}, fmt.Errorf("%w: name exceeds %d characters", domain.ErrValidation, maxNameLength)
	}

	who := domain.Identity{Name: name, Role: domain.RoleParticipant}
	if s.adminName != "" && strings.EqualFold(name, s.adminName) {
		// The admin name is reserved: without the password nobody may use it.
		if s.adminPasswordHash == "" || password == "" {
			return "", domain.Identity{}, domain.ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)) != nil {
			return "", domain.Identity{}, domain.ErrInvalidCredentials
		}
		who = domain.Identity{Name: s.adminName, Role: domain.RoleAdmin}
	}

	token, err := s.generateToken(who)
	if err != nil {
		return "", domain.Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return token, who, nil
}

func (s *AuthService) generateToken(who domain.Identity) (string, error) {
	claims := jwt.MapClaims{
		"name": who.Name,
		"role": who.Role,
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
