package repository

import (
	"context"
	"sort"
	"time"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

type memoryOrderRepository struct {
	store *MemoryStore
}

func NewMemoryOrderRepository(store *MemoryStore) repository.OrderRepository {
	return &memoryOrderRepository{store: store}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.store.with(ctx, func(st *memoryState) error {
		if _, exists := st.orders[order.ID]; exists {
			return errors.Conflict("Order already exists")
		}
		if hasActiveOrder(st, order.ItemID) {
			return errors.Conflict("Item already has an active order")
		}
		st.orders[order.ID] = order.Clone()
		return nil
	})
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	var order *entity.Order
	err := r.store.with(ctx, func(st *memoryState) error {
		stored, ok := st.orders[id]
		if !ok {
			return errors.OrderNotFound(nil)
		}
		order = stored.Clone()
		return nil
	})
	return order, err
}

// GetForUpdate needs no extra locking: memory transactions are already serialised.
func (r *memoryOrderRepository) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryOrderRepository) Update(ctx context.Context, order *entity.Order) error {
	return r.store.with(ctx, func(st *memoryState) error {
		if _, ok := st.orders[order.ID]; !ok {
			return errors.OrderNotFound(nil)
		}
		st.orders[order.ID] = order.Clone()
		return nil
	})
}

func (r *memoryOrderRepository) HasActiveOrderForItem(ctx context.Context, itemID string) (bool, error) {
	var active bool
	err := r.store.with(ctx, func(st *memoryState) error {
		active = hasActiveOrder(st, itemID)
		return nil
	})
	return active, err
}

func (r *memoryOrderRepository) List(ctx context.Context, filter repository.OrderFilter, limit, offset int) ([]*entity.Order, int64, error) {
	var orders []*entity.Order
	var total int64
	err := r.store.with(ctx, func(st *memoryState) error {
		matched := r.filter(st, func(o *entity.Order) bool {
			if filter.BuyerID != "" && o.BuyerID != filter.BuyerID {
				return false
			}
			if filter.SellerID != "" && o.SellerID != filter.SellerID {
				return false
			}
			if filter.Status != "" && o.Status != filter.Status {
				return false
			}
			return true
		})
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})

		total = int64(len(matched))
		if offset >= len(matched) {
			return nil
		}
		end := len(matched)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		orders = matched[offset:end]
		return nil
	})
	return orders, total, err
}

func (r *memoryOrderRepository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	return r.listDue(ctx, limit, func(o *entity.Order) bool {
		return o.Status == entity.OrderStatusEscrowHeld && !o.DeadlineAt.After(now)
	})
}

func (r *memoryOrderRepository) ListTradeOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	return r.listDue(ctx, limit, func(o *entity.Order) bool {
		return (o.Status == entity.OrderStatusInTrade || o.Status == entity.OrderStatusAwaitConfirm) &&
			o.TradeDeadlineAt != nil && !o.TradeDeadlineAt.After(now)
	})
}

func (r *memoryOrderRepository) listDue(ctx context.Context, limit int, match func(*entity.Order) bool) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := r.store.with(ctx, func(st *memoryState) error {
		orders = r.filter(st, match)
		sort.Slice(orders, func(i, j int) bool {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		})
		if limit > 0 && len(orders) > limit {
			orders = orders[:limit]
		}
		return nil
	})
	return orders, err
}

func (r *memoryOrderRepository) filter(st *memoryState, match func(*entity.Order) bool) []*entity.Order {
	var out []*entity.Order
	for _, o := range st.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	return out
}

func hasActiveOrder(st *memoryState, itemID string) bool {
	for _, o := range st.orders {
		if o.ItemID == itemID && !o.Status.IsTerminal() {
			return true
		}
	}
	return false
}

type memoryIdempotencyRepository struct {
	store *MemoryStore
}

func NewMemoryIdempotencyRepository(store *MemoryStore) repository.IdempotencyRepository {
	return &memoryIdempotencyRepository{store: store}
}

func (r *memoryIdempotencyRepository) Get(ctx context.Context, buyerID, key string) (string, error) {
	var orderID string
	err := r.store.with(ctx, func(st *memoryState) error {
		orderID = st.idem[buyerID+"/"+key]
		return nil
	})
	return orderID, err
}

func (r *memoryIdempotencyRepository) Save(ctx context.Context, buyerID, key, orderID string, createdAt time.Time) error {
	return r.store.with(ctx, func(st *memoryState) error {
		k := buyerID + "/" + key
		if _, exists := st.idem[k]; exists {
			return errors.Conflict("Idempotency key already used")
		}
		st.idem[k] = orderID
		return nil
	})
}
