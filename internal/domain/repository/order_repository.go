package repository

import (
	"context"
	"time"

	"gamescrow/internal/domain/entity"
)

type OrderFilter struct {
	BuyerID  string
	SellerID string
	Status   entity.OrderStatus
}

type OrderRepository interface {
	// Create fails with a CONFLICT error when the item already has an active order.
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	// GetForUpdate reads the order and, inside a transaction, locks it until commit.
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	Update(ctx context.Context, order *entity.Order) error
	HasActiveOrderForItem(ctx context.Context, itemID string) (bool, error)
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]*entity.Order, int64, error)

	// ListDueForExpiry returns ESCROW_HELD orders whose acceptance deadline is at or before now.
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error)
	// ListTradeOverdue returns IN_TRADE / AWAIT_CONFIRM orders whose trade window has elapsed.
	ListTradeOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error)
}

type IdempotencyRepository interface {
	// Get returns the order created under key, or "" if the key is unused.
	Get(ctx context.Context, buyerID, key string) (string, error)
	Save(ctx context.Context, buyerID, key, orderID string, createdAt time.Time) error
}
