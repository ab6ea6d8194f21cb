package usecase

import (
	"context"
	"fmt"
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
)

// transitionFunc mutates a freshly read order inside the transaction and
// returns the action it performed. It may run more than once when the store
// retries the transaction.
type transitionFunc func(ctx context.Context, order *entity.Order, now time.Time) (string, error)

// transitionRunner is the one path every order state change takes: per-order
// lock, transaction, guard evaluation on the current row, system message,
// then fan-out after commit.
type transitionRunner struct {
	tx        repository.Transactor
	orderRepo repository.OrderRepository
	chatRepo  repository.ChatRepository
	publisher service.EventPublisher
	locks     *syncutil.KeyLock
	clock     Clock
}

func newTransitionRunner(
	tx repository.Transactor,
	orderRepo repository.OrderRepository,
	chatRepo repository.ChatRepository,
	publisher service.EventPublisher,
	locks *syncutil.KeyLock,
	clock Clock,
) *transitionRunner {
	if clock == nil {
		clock = SystemClock
	}
	if locks == nil {
		locks = syncutil.NewKeyLock()
	}
	return &transitionRunner{
		tx:        tx,
		orderRepo: orderRepo,
		chatRepo:  chatRepo,
		publisher: publisher,
		locks:     locks,
		clock:     clock,
	}
}

func (r *transitionRunner) run(ctx context.Context, orderID, label, actorID string, fn transitionFunc) (order *entity.Order, err error) {
	ctx, span := tracing.StartSpan(ctx, "order."+label, tracing.OrderID(orderID), tracing.Action(label), tracing.UserID(actorID))
	defer func() { tracing.End(span, err) }()

	unlock, err := r.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		action  string
		from    entity.OrderStatus
		message *entity.ChatMessage
	)
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := r.orderRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = current.Status

		now := r.clock.Now()
		action, err = fn(ctx, current, now)
		if err != nil {
			return err
		}

		message = systemMessage(current, action, from, actorID, now)
		if err := r.orderRepo.Update(ctx, current); err != nil {
			return err
		}
		if err := r.chatRepo.AppendMessage(ctx, message); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		code := errors.CodeOf(err)
		metrics.OrderTransitionRejectionsTotal.WithLabelValues(label, code).Inc()
		if code == errors.CodeInternal || code == errors.CodeInvariantViolation {
			logger.LogOrderError(orderID, label, err)
		}
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(action, string(order.Status)).Inc()
	logger.Info("Order %s: %s (%s -> %s) by %q", order.ID, action, from, order.Status, actorID)
	r.publishOrderUpdate(order, action, message)
	return order, nil
}

// publishOrderUpdate fans one order.update out to the order topic and to
// each party's user topic, tagged with the recipient's side.
func (r *transitionRunner) publishOrderUpdate(order *entity.Order, action string, message *entity.ChatMessage) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(entity.OrderTopic(order.ID), entity.EventOrderUpdate, entity.OrderUpdate{
		Action:  action,
		Order:   order,
		Message: message,
	})
	r.publisher.Publish(entity.UserTopic(order.BuyerID), entity.EventOrderUpdate, entity.OrderUpdate{
		Action:  action,
		Side:    entity.SideBuyer,
		Order:   order,
		Message: message,
	})
	r.publisher.Publish(entity.UserTopic(order.SellerID), entity.EventOrderUpdate, entity.OrderUpdate{
		Action:  action,
		Side:    entity.SideSeller,
		Order:   order,
		Message: message,
	})
}

var systemMessageBodies = map[string]string{
	entity.OrderActionCreate:   "Order created. Payment is held in escrow until both parties confirm.",
	entity.OrderActionAccept:   "Seller accepted the order. Trading has started.",
	entity.OrderActionConfirm:  "%s confirmed the trade.",
	entity.OrderActionComplete: "Both parties confirmed. Funds were released to the seller.",
	entity.OrderActionCancel:   "Order cancelled. Held funds were returned to the buyer.",
	entity.OrderActionExpire:   "Seller did not accept in time. Held funds were returned to the buyer.",
	entity.OrderActionDispute:  "%s opened a dispute. An admin will review the trade.",
	entity.OrderActionEscalate: "The trade window elapsed. The order was moved to dispute for admin review.",
	entity.OrderActionResolve:  "Dispute resolved by admin: seller receives %s, buyer receives %s.",
}

// systemMessage builds the SYSTEM entry for a transition and reserves its seq on order.
func systemMessage(order *entity.Order, action string, from entity.OrderStatus, actorID string, now time.Time) *entity.ChatMessage {
	body := systemMessageBodies[action]
	switch action {
	case entity.OrderActionConfirm, entity.OrderActionDispute:
		body = fmt.Sprintf(body, sideLabel(order.SideOf(actorID)))
	case entity.OrderActionResolve:
		if order.Resolution != nil {
			body = fmt.Sprintf(body, order.Resolution.SellerAmount, order.Resolution.BuyerAmount)
		}
	}

	metadata := map[string]string{
		"action": action,
		"to":     string(order.Status),
	}
	if from != "" {
		metadata["from"] = string(from)
	}
	if actorID != "" {
		metadata["actorId"] = actorID
	}

	return &entity.ChatMessage{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Seq:       order.NextMessageSeq(),
		Kind:      entity.MessageKindSystem,
		Body:      body,
		Metadata:  metadata,
		CreatedAt: now,
	}
}

func sideLabel(side entity.Side) string {
	switch side {
	case entity.SideBuyer:
		return "Buyer"
	case entity.SideSeller:
		return "Seller"
	}
	return "Admin"
}
