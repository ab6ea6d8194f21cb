package repository

import (
	"context"

	"gamescrow/internal/domain/entity"
)

type WalletRepository interface {
	// Get returns the user's wallet, or an empty one if the user never held funds.
	Get(ctx context.Context, userID string) (*entity.Wallet, error)
	// GetForUpdate is Get plus a row lock held until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, userID string) (*entity.Wallet, error)
	Save(ctx context.Context, wallet *entity.Wallet) error

	AppendEntry(ctx context.Context, entry *entity.WalletEntry) error
	ListEntries(ctx context.Context, userID string, limit, offset int) ([]*entity.WalletEntry, int64, error)
}
