package ports

import (
	"context"

	"github.com/livequestions/ama-api/internal/core/domain"
)

type AuthService interface {
	Login(ctx context.Context, name, password string) (string, domain.Identity, error)
}
