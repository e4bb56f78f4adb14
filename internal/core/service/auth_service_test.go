package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/livequestions/ama-api/internal/core/domain"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewAuthService("Host", string(hash), "secret", time.Hour)
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	return claims
}

func TestAuthService_Login_Participant(t *testing.T) {
	svc := newTestAuthService(t)

	token, who, err := svc.Login(context.Background(), "  alice ", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if who.Name != "alice" || who.Role != domain.RoleParticipant {
		t.Fatalf("unexpected identity: %+v", who)
	}

	claims := parseClaims(t, token)
	if claims["name"] != "alice" || claims["role"] != domain.RoleParticipant {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestAuthService_Login_Admin(t *testing.T) {
	svc := newTestAuthService(t)

	token, who, err := svc.Login(context.Background(), "host", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !who.IsAdmin() || who.Name != "Host" {
		t.Fatalf("expected admin identity, got %+v", who)
	}
	if claims := parseClaims(t, token); claims["role"] != domain.RoleAdmin {
		t.Fatalf("expected role %s, got %v", domain.RoleAdmin, claims["role"])
	}
}

func TestAuthService_Login_AdminNameReserved(t *testing.T) {
	svc := newTestAuthService(t)

	for _, pwd := range []string{"", "wrong"} {
		if _, _, err := svc.Login(context.Background(), "Host", pwd); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("password %q: expected ErrInvalidCredentials, got %v", pwd, err)
		}
	}
}

func TestAuthService_Login_NoAdminConfigured(t *testing.T) {
	svc := NewAuthService("", "", "secret", time.Hour)

	_, who, err := svc.Login(context.Background(), "Host", "anything")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if who.IsAdmin() {
		t.Fatalf("no admin should exist without configuration")
	}
}

func TestAuthService_Login_EmptyName(t *testing.T) {
	svc := newTestAuthService(t)

	if _, _, err := svc.Login(context.Background(), "   ", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
