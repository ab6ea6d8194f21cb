package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type storeUnderTest struct {
	tx          repository.Transactor
	orders      repository.OrderRepository
	wallets     repository.WalletRepository
	chats       repository.ChatRepository
	idempotency repository.IdempotencyRepository
}

// runStoreContract exercises the behaviour every store implementation must share.
func runStoreContract(t *testing.T, s storeUnderTest) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	newOrder := func(t *testing.T) *entity.Order {
		t.Helper()
		item := &entity.Item{
			ID:       "item-" + uuid.New().String(),
			SellerID: "seller-" + uuid.New().String(),
			Price:    decimal.RequireFromString("25.50"),
			Status:   entity.ItemStatusActive,
		}
		order, err := entity.NewOrder(uuid.New().String(), item, "buyer-"+uuid.New().String(), 2, now, time.Hour)
		require.NoError(t, err)
		require.NoError(t, s.orders.Create(ctx, order))
		return order
	}

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		userID := "user-" + uuid.New().String()
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			w, err := s.wallets.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			require.NoError(t, w.Credit(decimal.NewFromInt(10)))
			if err := s.wallets.Save(ctx, w); err != nil {
				return err
			}
			return errors.Conflict("boom")
		})
		assert.True(t, errors.Is(err, errors.CodeConflict))

		w, err := s.wallets.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
	})

	t.Run("nested transactions join the outer one", func(t *testing.T) {
		userID := "user-" + uuid.New().String()
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.tx.RunInTx(ctx, func(ctx context.Context) error {
				w, err := s.wallets.GetForUpdate(ctx, userID)
				if err != nil {
					return err
				}
				if err := w.Credit(decimal.NewFromInt(5)); err != nil {
					return err
				}
				return s.wallets.Save(ctx, w)
			})
		})
		require.NoError(t, err)

		w, err := s.wallets.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(5)))
	})

	t.Run("wallet entries are listed newest first", func(t *testing.T) {
		userID := "user-" + uuid.New().String()
		w := entity.NewWallet(userID, now)
		require.NoError(t, w.Credit(decimal.NewFromInt(100)))
		require.NoError(t, s.wallets.Save(ctx, w))

		for i, kind := range []entity.WalletEntryType{entity.WalletEntryDeposit, entity.WalletEntryHold} {
			require.NoError(t, s.wallets.AppendEntry(ctx, &entity.WalletEntry{
				ID:           uuid.New().String(),
				UserID:       userID,
				Type:         kind,
				Amount:       decimal.NewFromInt(10),
				BalanceAfter: w.Balance,
				HeldAfter:    w.Held,
				CreatedAt:    now.Add(time.Duration(i) * time.Second),
			}))
		}

		entries, total, err := s.wallets.ListEntries(ctx, userID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, entries, 2)
		assert.Equal(t, entity.WalletEntryHold, entries[0].Type)
	})

	t.Run("one active order per item", func(t *testing.T) {
		order := newOrder(t)

		again, err := entity.NewOrder(uuid.New().String(), &entity.Item{
			ID:       order.ItemID,
			SellerID: order.SellerID,
			Price:    order.UnitPrice,
		}, "other-buyer", 1, now, time.Hour)
		require.NoError(t, err)
		assert.True(t, errors.Is(s.orders.Create(ctx, again), errors.CodeConflict))

		active, err := s.orders.HasActiveOrderForItem(ctx, order.ItemID)
		require.NoError(t, err)
		assert.True(t, active)

		require.NoError(t, order.Cancel(entity.Actor{UserID: order.BuyerID}, "changed my mind", now))
		require.NoError(t, s.orders.Update(ctx, order))

		active, err = s.orders.HasActiveOrderForItem(ctx, order.ItemID)
		require.NoError(t, err)
		assert.False(t, active)
		assert.NoError(t, s.orders.Create(ctx, again))
	})

	t.Run("order round trip", func(t *testing.T) {
		order := newOrder(t)

		got, err := s.orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.BuyerID, got.BuyerID)
		assert.Equal(t, entity.OrderStatusEscrowHeld, got.Status)
		assert.True(t, got.Total.Equal(decimal.RequireFromString("51")))
		assert.WithinDuration(t, order.DeadlineAt, got.DeadlineAt, time.Millisecond)

		_, err = s.orders.GetByID(ctx, uuid.New().String())
		assert.True(t, errors.Is(err, errors.CodeOrderNotFound))
	})

	t.Run("due for expiry includes the deadline itself", func(t *testing.T) {
		order := newOrder(t)

		due, err := s.orders.ListDueForExpiry(ctx, order.DeadlineAt.Add(-time.Second), 1000)
		require.NoError(t, err)
		assert.NotContains(t, orderIDs(due), order.ID)

		due, err = s.orders.ListDueForExpiry(ctx, order.DeadlineAt, 1000)
		require.NoError(t, err)
		assert.Contains(t, orderIDs(due), order.ID)
	})

	t.Run("message log", func(t *testing.T) {
		order := newOrder(t)
		sender := order.BuyerID

		for seq := int64(1); seq <= 3; seq++ {
			require.NoError(t, s.chats.AppendMessage(ctx, &entity.ChatMessage{
				ID:        uuid.New().String(),
				OrderID:   order.ID,
				Seq:       seq,
				SenderID:  &sender,
				Kind:      entity.MessageKindText,
				Body:      "hello",
				CreatedAt: now,
			}))
		}

		err := s.chats.AppendMessage(ctx, &entity.ChatMessage{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			Seq:       2,
			SenderID:  &sender,
			Kind:      entity.MessageKindText,
			Body:      "dup",
			CreatedAt: now,
		})
		assert.True(t, errors.Is(err, errors.CodeInvariantViolation))

		latest, err := s.chats.ListMessages(ctx, order.ID, repository.MessageQuery{Limit: 2, FromEnd: true})
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, int64(2), latest[0].Seq)
		assert.Equal(t, int64(3), latest[1].Seq)

		after, err := s.chats.ListMessages(ctx, order.ID, repository.MessageQuery{AfterSeq: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, after, 2)
		assert.Equal(t, int64(2), after[0].Seq)

		cursor, err := s.chats.GetCursor(ctx, order.ID, order.SellerID)
		require.NoError(t, err)
		assert.Empty(t, cursor.MessageID)

		require.NoError(t, cursor.Advance(latest[1], now))
		require.NoError(t, s.chats.SaveCursor(ctx, cursor))

		cursors, err := s.chats.ListCursors(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, cursors, 1)
		assert.Equal(t, int64(3), cursors[0].Seq)
	})

	t.Run("idempotency keys", func(t *testing.T) {
		buyer := "buyer-" + uuid.New().String()

		id, err := s.idempotency.Get(ctx, buyer, "key-1")
		require.NoError(t, err)
		assert.Empty(t, id)

		require.NoError(t, s.idempotency.Save(ctx, buyer, "key-1", "order-1", now))

		id, err = s.idempotency.Get(ctx, buyer, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "order-1", id)

		id, err = s.idempotency.Get(ctx, "someone-else", "key-1")
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func orderIDs(orders []*entity.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}
