package repository

import (
	"context"
	"time"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
)

type memoryWalletRepository struct {
	store *MemoryStore
}

func NewMemoryWalletRepository(store *MemoryStore) repository.WalletRepository {
	return &memoryWalletRepository{store: store}
}

func (r *memoryWalletRepository) Get(ctx context.Context, userID string) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := r.store.with(ctx, func(st *memoryState) error {
		if stored, ok := st.wallets[userID]; ok {
			wallet = stored.Clone()
			return nil
		}
		wallet = entity.NewWallet(userID, time.Time{})
		return nil
	})
	return wallet, err
}

func (r *memoryWalletRepository) GetForUpdate(ctx context.Context, userID string) (*entity.Wallet, error) {
	return r.Get(ctx, userID)
}

func (r *memoryWalletRepository) Save(ctx context.Context, wallet *entity.Wallet) error {
	if err := wallet.Check(); err != nil {
		return err
	}
	return r.store.with(ctx, func(st *memoryState) error {
		st.wallets[wallet.UserID] = wallet.Clone()
		return nil
	})
}

func (r *memoryWalletRepository) AppendEntry(ctx context.Context, entry *entity.WalletEntry) error {
	return r.store.with(ctx, func(st *memoryState) error {
		e := *entry
		st.entries = append(st.entries, &e)
		return nil
	})
}

// ListEntries returns newest first.
func (r *memoryWalletRepository) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*entity.WalletEntry, int64, error) {
	var entries []*entity.WalletEntry
	var total int64
	err := r.store.with(ctx, func(st *memoryState) error {
		var mine []*entity.WalletEntry
		for i := len(st.entries) - 1; i >= 0; i-- {
			if st.entries[i].UserID == userID {
				e := *st.entries[i]
				mine = append(mine, &e)
			}
		}
		total = int64(len(mine))
		if offset >= len(mine) {
			return nil
		}
		end := len(mine)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		entries = mine[offset:end]
		return nil
	})
	return entries, total, err
}
