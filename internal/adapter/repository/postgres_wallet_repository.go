package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type postgresWalletRepository struct {
	store *PostgresStore
}

func NewPostgresWalletRepository(store *PostgresStore) repository.WalletRepository {
	return &postgresWalletRepository{store: store}
}

func (r *postgresWalletRepository) Get(ctx context.Context, userID string) (*entity.Wallet, error) {
	w := entity.Wallet{UserID: userID}
	err := r.store.q(ctx).QueryRowContext(ctx,
		`SELECT balance, held, updated_at FROM wallets WHERE user_id = $1`, userID,
	).Scan(&w.Balance, &w.Held, &w.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return entity.NewWallet(userID, time.Time{}), nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to read wallet", err)
	}
	return &w, nil
}

// GetForUpdate makes sure the row exists so there is something to lock;
// two first-time writers then serialise on the same row.
func (r *postgresWalletRepository) GetForUpdate(ctx context.Context, userID string) (*entity.Wallet, error) {
	if !inPostgresTx(ctx) {
		return r.Get(ctx, userID)
	}

	q := r.store.q(ctx)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
	); err != nil {
		return nil, errors.Internal("Failed to initialise wallet", err)
	}

	w := entity.Wallet{UserID: userID}
	err := q.QueryRowContext(ctx,
		`SELECT balance, held, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&w.Balance, &w.Held, &w.UpdatedAt)
	if err != nil {
		return nil, errors.Internal("Failed to lock wallet", err)
	}
	return &w, nil
}

func (r *postgresWalletRepository) Save(ctx context.Context, wallet *entity.Wallet) error {
	if err := wallet.Check(); err != nil {
		return err
	}
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, held, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance, held = EXCLUDED.held, updated_at = EXCLUDED.updated_at`,
		wallet.UserID, wallet.Balance, wallet.Held, wallet.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return errors.InvariantViolation("wallet constraint violated", err)
		}
		return errors.Internal("Failed to save wallet", err)
	}
	return nil
}

func (r *postgresWalletRepository) AppendEntry(ctx context.Context, entry *entity.WalletEntry) error {
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO wallet_entries (id, user_id, type, amount, balance_after, held_after, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, string(entry.Type), entry.Amount, entry.BalanceAfter, entry.HeldAfter,
		entry.Reference, entry.CreatedAt)
	if err != nil {
		return errors.Internal("Failed to append wallet entry", err)
	}
	return nil
}

func (r *postgresWalletRepository) ListEntries(ctx context.Context, userID string, limit, offset int) ([]*entity.WalletEntry, int64, error) {
	q := r.store.q(ctx)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallet_entries WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count wallet entries", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_after, held_after, reference, created_at
		FROM wallet_entries WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list wallet entries", err)
	}
	defer rows.Close()

	var entries []*entity.WalletEntry
	for rows.Next() {
		var e entity.WalletEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.UserID, &entryType, &e.Amount, &e.BalanceAfter, &e.HeldAfter, &e.Reference, &e.CreatedAt); err != nil {
			return nil, 0, errors.Internal("Failed to read wallet entry", err)
		}
		e.Type = entity.WalletEntryType(entryType)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate wallet entries", err)
	}
	return entries, total, nil
}
