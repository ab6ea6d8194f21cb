package service

import (
	"context"

	"gamescrow/internal/domain/entity"
)

// ItemCatalog is the read-only listing lookup. Implementations return a
// NOT_FOUND error for unknown items and UPSTREAM_UNAVAILABLE when the
// catalog cannot be reached.
type ItemCatalog interface {
	GetItem(ctx context.Context, itemID string) (*entity.Item, error)
}
