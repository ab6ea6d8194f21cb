//go:build integration

package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	db, err := OpenPostgres(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db)
	runStoreContract(t, storeUnderTest{
		tx:          store,
		orders:      NewPostgresOrderRepository(store),
		wallets:     NewPostgresWalletRepository(store),
		chats:       NewPostgresChatRepository(store),
		idempotency: NewPostgresIdempotencyRepository(store),
	})
}
