package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type firestoreWallet struct {
	UserID    string    `firestore:"userId"`
	Balance   string    `firestore:"balance"`
	Held      string    `firestore:"held"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type firestoreWalletEntry struct {
	ID           string    `firestore:"id"`
	UserID       string    `firestore:"userId"`
	Type         string    `firestore:"type"`
	Amount       string    `firestore:"amount"`
	BalanceAfter string    `firestore:"balanceAfter"`
	HeldAfter    string    `firestore:"heldAfter"`
	Reference    string    `firestore:"reference"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type firestoreWalletRepository struct {
	client *firestore.Client
}

func NewFirestoreWalletRepository(client *firestore.Client) repository.WalletRepository {
	return &firestoreWalletRepository{
		client: client,
	}
}

func (r *firestoreWalletRepository) Get(ctx context.Context, userID string) (*entity.Wallet, error) {
	doc, err := getDoc(ctx, r.client.Collection(walletsCollection).Doc(userID))
	if err != nil {
		if isNotFound(err) {
			return entity.NewWallet(userID, time.Time{}), nil
		}
		return nil, errors.Internal("Failed to get wallet", err)
	}

	var stored firestoreWallet
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.Internal("Failed to parse wallet data", err)
	}
	balance, err := decimal.NewFromString(stored.Balance)
	if err != nil {
		return nil, errors.Internal("Failed to parse wallet balance", err)
	}
	held, err := decimal.NewFromString(stored.Held)
	if err != nil {
		return nil, errors.Internal("Failed to parse wallet hold", err)
	}

	return &entity.Wallet{
		UserID:    userID,
		Balance:   balance,
		Held:      held,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

// GetForUpdate relies on the transaction's read set for isolation.
func (r *firestoreWalletRepository) GetForUpdate(ctx context.Context, userID string) (*entity.Wallet, error) {
	return r.Get(ctx, userID)
}

func (r *firestoreWalletRepository) Save(ctx context.Context, wallet *entity.Wallet) error {
	if err := wallet.Check(); err != nil {
		return err
	}
	err := setDoc(ctx, r.client.Collection(walletsCollection).Doc(wallet.UserID), firestoreWallet{
		UserID:    wallet.UserID,
		Balance:   wallet.Balance.String(),
		Held:      wallet.Held.String(),
		UpdatedAt: wallet.UpdatedAt,
	})
	if err != nil {
		return errors.Internal("Failed to save wallet", err)
	}
	return nil
}

func (r *firestoreWalletRepository) AppendEntry(ctx context.Context, entry *entity.WalletEntry) error {
	err := createDoc(ctx, r.client.Collection(walletEntriesCollection).Doc(entry.ID), firestoreWalletEntry{
		ID:           entry.ID,
		UserID:       entry.UserID,
		Type:         string(entry.Type),
		Amount:       entry.Amount.String(),
		BalanceAfter: entry.BalanceAfter.String(),
		HeldAfter:    entry.HeldAfter.String(),
		Reference:    entry.Reference,
		CreatedAt:    entry.CreatedAt,
	})
	if err != nil {
		return errors.Internal("Failed to append wallet entry", err)
	}
	return nil
}

func (r *firestoreWalletRepository) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*entity.WalletEntry, int64, error) {
	query := r.client.Collection(walletEntriesCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc)

	all, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count wallet entries", err)
	}
	total := int64(len(all))

	iter := query.Offset(offset).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var entries []*entity.WalletEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate wallet entries", err)
		}

		var stored firestoreWalletEntry
		if err := doc.DataTo(&stored); err != nil {
			return nil, 0, errors.Internal("Failed to parse wallet entry", err)
		}
		amount, _ := decimal.NewFromString(stored.Amount)
		balanceAfter, _ := decimal.NewFromString(stored.BalanceAfter)
		heldAfter, _ := decimal.NewFromString(stored.HeldAfter)

		entries = append(entries, &entity.WalletEntry{
			ID:           stored.ID,
			UserID:       stored.UserID,
			Type:         entity.WalletEntryType(stored.Type),
			Amount:       amount,
			BalanceAfter: balanceAfter,
			HeldAfter:    heldAfter,
			Reference:    stored.Reference,
			CreatedAt:    stored.CreatedAt,
		})
	}
	return entries, total, nil
}
