package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gamescrow/pkg/errors"
)

type OrderStatus string

const (
	OrderStatusEscrowHeld   OrderStatus = "ESCROW_HELD"
	OrderStatusInTrade      OrderStatus = "IN_TRADE"
	OrderStatusAwaitConfirm OrderStatus = "AWAIT_CONFIRM"
	OrderStatusCompleted    OrderStatus = "COMPLETED"
	OrderStatusCancelled    OrderStatus = "CANCELLED"
	OrderStatusExpired      OrderStatus = "EXPIRED"
	OrderStatusDisputed     OrderStatus = "DISPUTED"
)

// ActiveOrderStatuses are the statuses that keep buyer funds on hold and
// block the item from being bought again.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusEscrowHeld,
	OrderStatusInTrade,
	OrderStatusAwaitConfirm,
	OrderStatusDisputed,
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusEscrowHeld, OrderStatusInTrade, OrderStatusAwaitConfirm,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusExpired, OrderStatusDisputed:
		return true
	}
	return false
}

// Order actions, also used as the "action" of the system message each transition writes.
const (
	OrderActionCreate   = "create"
	OrderActionAccept   = "accept"
	OrderActionConfirm  = "confirm"
	OrderActionComplete = "complete"
	OrderActionCancel   = "cancel"
	OrderActionExpire   = "expire"
	OrderActionDispute  = "dispute"
	OrderActionEscalate = "escalate"
	OrderActionResolve  = "resolve"
)

// TradeWindowElapsedReason is the dispute reason code used when the sweeper
// escalates an order whose trade window ran out.
const TradeWindowElapsedReason = "TRADE_WINDOW_ELAPSED"

type Side string

const (
	SideBuyer  Side = "buyer"
	SideSeller Side = "seller"
)

type DisputeResolution struct {
	SellerPercentage decimal.Decimal `json:"sellerPercentage"`
	SellerAmount     decimal.Decimal `json:"sellerAmount"`
	BuyerAmount      decimal.Decimal `json:"buyerAmount"`
	Note             string          `json:"note,omitempty"`
	AdminID          string          `json:"adminId"`
	ResolvedAt       time.Time       `json:"resolvedAt"`
}

type Order struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"itemId"`
	BuyerID   string          `json:"buyerId"`
	SellerID  string          `json:"sellerId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`

	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	DeadlineAt time.Time `json:"deadlineAt"` // seller must accept before this

	SellerAcceptedAt  *time.Time `json:"sellerAcceptedAt,omitempty"`
	TradeDeadlineAt   *time.Time `json:"tradeDeadlineAt,omitempty"`
	SellerConfirmedAt *time.Time `json:"sellerConfirmedAt,omitempty"`
	BuyerConfirmedAt  *time.Time `json:"buyerConfirmedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`

	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy  string     `json:"cancelledBy,omitempty"`
	CancelReason string     `json:"cancelReason,omitempty"`
	ExpiredAt    *time.Time `json:"expiredAt,omitempty"`

	DisputedAt        *time.Time         `json:"disputedAt,omitempty"`
	DisputedBy        string             `json:"disputedBy,omitempty"` // empty when escalated by the sweeper
	DisputeReasonCode string             `json:"disputeReasonCode,omitempty"`
	Resolution        *DisputeResolution `json:"resolution,omitempty"`

	// MessageSeq is the sequence number of the last chat message appended to this order.
	MessageSeq int64 `json:"lastMessageSeq"`
}

// NewOrder builds an order in ESCROW_HELD. Guards that need other state
// (item availability, funds) are checked by the caller.
func NewOrder(id string, item *Item, buyerID string, quantity int64, now time.Time, acceptWindow time.Duration) (*Order, error) {
	if quantity <= 0 {
		return nil, errors.Validation("quantity must be at least 1")
	}
	if buyerID == item.SellerID {
		return nil, errors.Forbidden("You cannot buy your own item", nil)
	}
	if !item.Price.IsPositive() {
		return nil, errors.InvariantViolation("item price must be positive", nil)
	}

	return &Order{
		ID:         id,
		ItemID:     item.ID,
		BuyerID:    buyerID,
		SellerID:   item.SellerID,
		Quantity:   quantity,
		UnitPrice:  item.Price,
		Total:      item.Price.Mul(decimal.NewFromInt(quantity)),
		Status:     OrderStatusEscrowHeld,
		CreatedAt:  now,
		UpdatedAt:  now,
		DeadlineAt: now.Add(acceptWindow),
	}, nil
}

func (o *Order) IsParticipant(userID string) bool {
	return userID != "" && (userID == o.BuyerID || userID == o.SellerID)
}

// SideOf returns which side of the trade userID is on, or "" for outsiders.
func (o *Order) SideOf(userID string) Side {
	switch userID {
	case o.BuyerID:
		return SideBuyer
	case o.SellerID:
		return SideSeller
	}
	return ""
}

func (o *Order) Counterparty(userID string) string {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}

// Accept moves ESCROW_HELD to IN_TRADE. Only the seller may accept and only
// before the acceptance deadline.
func (o *Order) Accept(actorID string, now time.Time, tradeWindow time.Duration) error {
	if actorID != o.SellerID {
		return errors.Forbidden("Only the seller can accept this order", nil)
	}
	if o.Status != OrderStatusEscrowHeld {
		return invalidTransition(o.Status, OrderActionAccept)
	}
	if !now.Before(o.DeadlineAt) {
		return errors.InvalidTransition("The acceptance window for this order has elapsed")
	}

	tradeDeadline := now.Add(tradeWindow)
	o.Status = OrderStatusInTrade
	o.SellerAcceptedAt = &now
	o.TradeDeadlineAt = &tradeDeadline
	o.UpdatedAt = now
	return nil
}

// Confirm records one party's confirmation. It returns true when this
// confirmation completes the order, which is the caller's cue to settle.
func (o *Order) Confirm(side Side, now time.Time) (bool, error) {
	if o.Status != OrderStatusInTrade && o.Status != OrderStatusAwaitConfirm {
		return false, invalidTransition(o.Status, OrderActionConfirm)
	}

	switch side {
	case SideSeller:
		if o.SellerConfirmedAt != nil {
			return false, errors.InvalidTransition("Seller has already confirmed this order")
		}
		o.SellerConfirmedAt = &now
	case SideBuyer:
		if o.BuyerConfirmedAt != nil {
			return false, errors.InvalidTransition("Buyer has already confirmed this order")
		}
		o.BuyerConfirmedAt = &now
	default:
		return false, errors.Forbidden("Only the buyer or seller can confirm this order", nil)
	}

	o.UpdatedAt = now
	if o.SellerConfirmedAt != nil && o.BuyerConfirmedAt != nil {
		o.Status = OrderStatusCompleted
		o.CompletedAt = &now
		return true, nil
	}
	o.Status = OrderStatusAwaitConfirm
	return false, nil
}

// Cancel applies the cancel policy: before acceptance either party may
// cancel; once trading started only the seller (refunding the buyer) may,
// and the buyer has to open a dispute instead. Admins may cancel any order
// that is neither terminal nor disputed.
func (o *Order) Cancel(actor Actor, reason string, now time.Time) error {
	if !actor.IsAdmin() && !o.IsParticipant(actor.UserID) {
		return errors.Forbidden("You are not a participant of this order", nil)
	}
	if o.Status.IsTerminal() || o.Status == OrderStatusDisputed {
		return invalidTransition(o.Status, OrderActionCancel)
	}
	if !actor.IsAdmin() && o.Status != OrderStatusEscrowHeld && actor.UserID != o.SellerID {
		return errors.Forbidden("Once trading has started only the seller can cancel; open a dispute instead", nil)
	}

	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelledBy = actor.UserID
	o.CancelReason = reason
	o.UpdatedAt = now
	return nil
}

func (o *Order) Dispute(actorID, reasonCode string, now time.Time) error {
	if !o.IsParticipant(actorID) {
		return errors.Forbidden("Only the buyer or seller can dispute this order", nil)
	}
	if o.Status != OrderStatusInTrade && o.Status != OrderStatusAwaitConfirm {
		return invalidTransition(o.Status, OrderActionDispute)
	}

	o.Status = OrderStatusDisputed
	o.DisputedAt = &now
	o.DisputedBy = actorID
	o.DisputeReasonCode = reasonCode
	o.UpdatedAt = now
	return nil
}

// Expire is driven by the sweeper once the acceptance deadline has passed.
func (o *Order) Expire(now time.Time) error {
	if o.Status != OrderStatusEscrowHeld {
		return invalidTransition(o.Status, OrderActionExpire)
	}
	if now.Before(o.DeadlineAt) {
		return errors.InvalidTransition("The acceptance window has not elapsed yet")
	}

	o.Status = OrderStatusExpired
	o.ExpiredAt = &now
	o.UpdatedAt = now
	return nil
}

// EscalateOverdue moves a trade that outlived its trade window into DISPUTED
// so an admin decides where the held funds go.
func (o *Order) EscalateOverdue(now time.Time) error {
	if o.Status != OrderStatusInTrade && o.Status != OrderStatusAwaitConfirm {
		return invalidTransition(o.Status, OrderActionEscalate)
	}
	if o.TradeDeadlineAt == nil || now.Before(*o.TradeDeadlineAt) {
		return errors.InvalidTransition("The trade window has not elapsed yet")
	}

	o.Status = OrderStatusDisputed
	o.DisputedAt = &now
	o.DisputedBy = ""
	o.DisputeReasonCode = TradeWindowElapsedReason
	o.UpdatedAt = now
	return nil
}

// Resolve closes a dispute with the given split. Amounts must come from SplitAmounts.
func (o *Order) Resolve(resolution DisputeResolution) error {
	if o.Status != OrderStatusDisputed {
		return invalidTransition(o.Status, OrderActionResolve)
	}
	if !resolution.SellerAmount.Add(resolution.BuyerAmount).Equal(o.Total) {
		return errors.InvariantViolation("dispute split does not add up to the order total", nil)
	}

	resolvedAt := resolution.ResolvedAt
	o.Resolution = &resolution
	o.Status = OrderStatusCompleted
	o.CompletedAt = &resolvedAt
	o.UpdatedAt = resolvedAt
	return nil
}

// NextMessageSeq reserves the next chat sequence number for this order.
func (o *Order) NextMessageSeq() int64 {
	o.MessageSeq++
	return o.MessageSeq
}

// Clone returns a copy that shares no mutable state with o.
func (o *Order) Clone() *Order {
	c := *o
	if o.Resolution != nil {
		r := *o.Resolution
		c.Resolution = &r
	}
	return &c
}

// SplitAmounts divides total between seller and buyer. The seller share is
// rounded half-to-even at the currency scale and the buyer receives the exact
// remainder, so the two always add up to total.
func SplitAmounts(total, sellerPercentage decimal.Decimal, scale int32) (decimal.Decimal, decimal.Decimal, error) {
	if sellerPercentage.IsNegative() || sellerPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, decimal.Zero, errors.Validation("sellerPercentage must be between 0 and 100")
	}

	sellerAmount := total.Mul(sellerPercentage).Shift(-2).RoundBank(scale)
	return sellerAmount, total.Sub(sellerAmount), nil
}

func invalidTransition(status OrderStatus, action string) error {
	return errors.InvalidTransition(fmt.Sprintf("Cannot %s an order in status %s", action, status))
}
