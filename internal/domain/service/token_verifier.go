package service

import (
	"context"

	"gamescrow/internal/domain/entity"
)

// TokenVerifier turns a bearer token into the calling actor.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Actor, error)
}
