package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/internal/domain/service"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/metrics"
	"gamescrow/pkg/syncutil"
	"gamescrow/pkg/tracing"
	"gamescrow/pkg/utils"
)

type OrderConfig struct {
	AcceptWindow time.Duration
	TradeWindow  time.Duration
}

type OrderUseCase struct {
	tx        repository.Transactor
	orderRepo repository.OrderRepository
	idemRepo  repository.IdempotencyRepository
	chatRepo  repository.ChatRepository
	wallet    *WalletUseCase
	catalog   service.ItemCatalog
	runner    *transitionRunner
	clock     Clock
	config    OrderConfig
}

func NewOrderUseCase(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	idemRepo repository.IdempotencyRepository,
	chatRepo repository.ChatRepository,
	wallet *WalletUseCase,
	catalog service.ItemCatalog,
	publisher service.EventPublisher,
	locks *syncutil.KeyLock,
	clock Clock,
	config OrderConfig,
) *OrderUseCase {
	if clock == nil {
		clock = SystemClock
	}
	return &OrderUseCase{
		tx:        tx,
		orderRepo: orderRepo,
		idemRepo:  idemRepo,
		chatRepo:  chatRepo,
		wallet:    wallet,
		catalog:   catalog,
		runner:    newTransitionRunner(tx, orderRepo, chatRepo, publisher, locks, clock),
		clock:     clock,
		config:    config,
	}
}

type CreateOrderInput struct {
	ItemID         string
	Quantity       int64
	IdempotencyKey string
}

// CreateOrder is the buy action. With an idempotency key, a repeated call
// returns the order created by the first one and replayed=true.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, buyerID string, input CreateOrderInput) (order *entity.Order, replayed bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "order.create", tracing.UserID(buyerID))
	defer func() { tracing.End(span, err) }()

	if input.Quantity == 0 {
		input.Quantity = 1
	}

	if input.IdempotencyKey != "" {
		if existing, err := uc.replay(ctx, buyerID, input.IdempotencyKey); err != nil || existing != nil {
			return existing, existing != nil, err
		}
	}

	item, err := uc.catalog.GetItem(ctx, input.ItemID)
	if err != nil {
		return nil, false, err
	}
	if !item.IsAvailable() {
		return nil, false, errors.InvalidTransition("Item is not available for purchase")
	}
	if !item.CanSupply(input.Quantity) {
		return nil, false, errors.Validation("Requested quantity exceeds the item's stock")
	}
	if err := uc.wallet.CheckAmount(item.Price); err != nil {
		return nil, false, errors.InvariantViolation("item price is not a valid currency amount", err)
	}

	var createMessage *entity.ChatMessage
	err = uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if input.IdempotencyKey != "" {
			orderID, err := uc.idemRepo.Get(ctx, buyerID, input.IdempotencyKey)
			if err != nil {
				return err
			}
			if orderID != "" {
				existing, err := uc.orderRepo.GetByID(ctx, orderID)
				if err != nil {
					return err
				}
				order, replayed = existing, true
				return nil
			}
		}

		active, err := uc.orderRepo.HasActiveOrderForItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if active {
			return errors.Conflict("Item already has an active order")
		}

		now := uc.clock.Now()
		created, err := entity.NewOrder(uuid.New().String(), item, buyerID, input.Quantity, now, uc.config.AcceptWindow)
		if err != nil {
			return err
		}

		if err := uc.wallet.Hold(ctx, buyerID, created.Total, created.ID); err != nil {
			return err
		}

		message := systemMessage(created, entity.OrderActionCreate, "", buyerID, now)
		if err := uc.orderRepo.Create(ctx, created); err != nil {
			return err
		}
		if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
			return err
		}
		if input.IdempotencyKey != "" {
			if err := uc.idemRepo.Save(ctx, buyerID, input.IdempotencyKey, created.ID, now); err != nil {
				return err
			}
		}

		order, replayed = created, false
		createMessage = message
		return nil
	})
	if err != nil {
		metrics.OrderTransitionRejectionsTotal.WithLabelValues(entity.OrderActionCreate, errors.CodeOf(err)).Inc()
		return nil, false, err
	}
	if replayed {
		return order, true, nil
	}

	metrics.OrderTransitionsTotal.WithLabelValues(entity.OrderActionCreate, string(order.Status)).Inc()
	logger.Info("Order %s created by buyer %s for item %s, total %s", order.ID, buyerID, order.ItemID, order.Total)
	uc.runner.publishOrderUpdate(order, entity.OrderActionCreate, createMessage)
	return order, false, nil
}

func (uc *OrderUseCase) replay(ctx context.Context, buyerID, key string) (*entity.Order, error) {
	orderID, err := uc.idemRepo.Get(ctx, buyerID, key)
	if err != nil || orderID == "" {
		return nil, err
	}
	return uc.orderRepo.GetByID(ctx, orderID)
}

// Accept is the seller taking the order before the acceptance deadline.
func (uc *OrderUseCase) Accept(ctx context.Context, orderID, sellerID string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionAccept, sellerID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			return entity.OrderActionAccept, order.Accept(sellerID, now, uc.config.TradeWindow)
		})
}

// Confirm records the caller's confirmation on the given side. The second
// confirmation completes the order and settles the held funds to the seller.
func (uc *OrderUseCase) Confirm(ctx context.Context, orderID, userID string, side entity.Side) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionConfirm, userID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			return uc.confirm(ctx, order, userID, side, now)
		})
}

func (uc *OrderUseCase) confirm(ctx context.Context, order *entity.Order, userID string, side entity.Side, now time.Time) (string, error) {
	if order.SideOf(userID) != side {
		return "", errors.Forbidden("Only the "+string(side)+" can confirm on this side of the order", nil)
	}
	completed, err := order.Confirm(side, now)
	if err != nil {
		return "", err
	}
	if !completed {
		return entity.OrderActionConfirm, nil
	}
	if err := uc.wallet.Settle(ctx, order.BuyerID, order.SellerID, order.Total, order.ID); err != nil {
		return "", err
	}
	return entity.OrderActionComplete, nil
}

// Ready is the seller's single "ready" button: accept while the order is
// waiting for the seller, confirm once trading has started.
func (uc *OrderUseCase) Ready(ctx context.Context, orderID, sellerID string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, "ready", sellerID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			if order.SideOf(sellerID) != entity.SideSeller {
				return "", errors.Forbidden("Only the seller can mark this order ready", nil)
			}
			if order.Status == entity.OrderStatusEscrowHeld {
				return entity.OrderActionAccept, order.Accept(sellerID, now, uc.config.TradeWindow)
			}
			return uc.confirm(ctx, order, sellerID, entity.SideSeller, now)
		})
}

// Cancel refunds the buyer's hold. See entity.Order.Cancel for who may cancel when.
func (uc *OrderUseCase) Cancel(ctx context.Context, orderID string, actor entity.Actor, reason string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionCancel, actor.UserID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			if err := order.Cancel(actor, reason, now); err != nil {
				return "", err
			}
			return entity.OrderActionCancel, uc.wallet.Release(ctx, order.BuyerID, order.Total, order.ID)
		})
}

// Dispute freezes the held funds until an admin resolves the order.
func (uc *OrderUseCase) Dispute(ctx context.Context, orderID, userID, reasonCode string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionDispute, userID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			return entity.OrderActionDispute, order.Dispute(userID, reasonCode, now)
		})
}

// Expire releases the buyer's hold on an order the seller never accepted.
// Racing an accept, whichever commits first wins and the other sees
// INVALID_TRANSITION.
func (uc *OrderUseCase) Expire(ctx context.Context, orderID string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionExpire, entity.SystemActor.UserID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			if err := order.Expire(now); err != nil {
				return "", err
			}
			return entity.OrderActionExpire, uc.wallet.Release(ctx, order.BuyerID, order.Total, order.ID)
		})
}

// EscalateOverdue hands an order whose trade window ran out to the admins.
func (uc *OrderUseCase) EscalateOverdue(ctx context.Context, orderID string) (*entity.Order, error) {
	return uc.runner.run(ctx, orderID, entity.OrderActionEscalate, entity.SystemActor.UserID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			return entity.OrderActionEscalate, order.EscalateOverdue(now)
		})
}

// GetOrder returns the order to its participants and to admins.
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string, actor entity.Actor) (*entity.Order, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !order.IsParticipant(actor.UserID) {
		return nil, errors.Forbidden("You are not a participant of this order", nil)
	}
	return order, nil
}

type ListMyOrdersInput struct {
	Role   entity.Side
	Status entity.OrderStatus
}

func (uc *OrderUseCase) ListMyOrders(ctx context.Context, userID string, input ListMyOrdersInput, pagination utils.PaginationParams) ([]*entity.Order, int64, error) {
	if input.Status != "" && !input.Status.IsValid() {
		return nil, 0, errors.Validation("Unknown order status: " + string(input.Status))
	}

	filter := repository.OrderFilter{Status: input.Status}
	switch input.Role {
	case entity.SideSeller:
		filter.SellerID = userID
	case entity.SideBuyer, "":
		filter.BuyerID = userID
	default:
		return nil, 0, errors.Validation("role must be buyer or seller")
	}

	return uc.orderRepo.List(ctx, filter, pagination.PageSize, pagination.Offset)
}

// AuthorizeTopic decides whether actor may subscribe to a realtime topic.
func (uc *OrderUseCase) AuthorizeTopic(ctx context.Context, actor entity.Actor, topic string) error {
	kind, id, ok := entity.ParseTopic(topic)
	if !ok {
		return errors.Validation("topic must be order:<id> or user:<id>")
	}
	if actor.IsAdmin() {
		return nil
	}

	switch kind {
	case entity.TopicKindUser:
		if id != actor.UserID {
			return errors.Forbidden("You can only subscribe to your own user topic", nil)
		}
	case entity.TopicKindOrder:
		if _, err := uc.GetOrder(ctx, id, actor); err != nil {
			return err
		}
	}
	return nil
}
