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

// firestoreOrder is the stored shape of an order; money is kept as decimal strings.
type firestoreOrder struct {
	ID                string               `firestore:"id"`
	ItemID            string               `firestore:"itemId"`
	BuyerID           string               `firestore:"buyerId"`
	SellerID          string               `firestore:"sellerId"`
	Quantity          int64                `firestore:"quantity"`
	UnitPrice         string               `firestore:"unitPrice"`
	Total             string               `firestore:"total"`
	Status            string               `firestore:"status"`
	Active            bool                 `firestore:"active"`
	CreatedAt         time.Time            `firestore:"createdAt"`
	UpdatedAt         time.Time            `firestore:"updatedAt"`
	DeadlineAt        time.Time            `firestore:"deadlineAt"`
	SellerAcceptedAt  *time.Time           `firestore:"sellerAcceptedAt"`
	TradeDeadlineAt   *time.Time           `firestore:"tradeDeadlineAt"`
	SellerConfirmedAt *time.Time           `firestore:"sellerConfirmedAt"`
	BuyerConfirmedAt  *time.Time           `firestore:"buyerConfirmedAt"`
	CompletedAt       *time.Time           `firestore:"completedAt"`
	CancelledAt       *time.Time           `firestore:"cancelledAt"`
	CancelledBy       string               `firestore:"cancelledBy"`
	CancelReason      string               `firestore:"cancelReason"`
	ExpiredAt         *time.Time           `firestore:"expiredAt"`
	DisputedAt        *time.Time           `firestore:"disputedAt"`
	DisputedBy        string               `firestore:"disputedBy"`
	DisputeReasonCode string               `firestore:"disputeReasonCode"`
	Resolution        *firestoreResolution `firestore:"resolution"`
	MessageSeq        int64                `firestore:"messageSeq"`
}

type firestoreResolution struct {
	SellerPercentage string    `firestore:"sellerPercentage"`
	SellerAmount     string    `firestore:"sellerAmount"`
	BuyerAmount      string    `firestore:"buyerAmount"`
	Note             string    `firestore:"note"`
	AdminID          string    `firestore:"adminId"`
	ResolvedAt       time.Time `firestore:"resolvedAt"`
}

type firestoreActiveItem struct {
	OrderID string `firestore:"orderId"`
}

type firestoreOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreOrderRepository(client *firestore.Client) repository.OrderRepository {
	return &firestoreOrderRepository{
		client: client,
	}
}

// Create also claims activeItems/<itemId>. The claim is created, never
// overwritten, so a second active order on the same item fails at commit.
func (r *firestoreOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	claim := r.client.Collection(activeItemsCollection).Doc(order.ItemID)
	if err := createDoc(ctx, claim, firestoreActiveItem{OrderID: order.ID}); err != nil {
		if isAlreadyExists(err) {
			return errors.Conflict("Item already has an active order")
		}
		return errors.Internal("Failed to claim item", err)
	}

	if err := createDoc(ctx, r.client.Collection(ordersCollection).Doc(order.ID), toFirestoreOrder(order)); err != nil {
		if isAlreadyExists(err) {
			return errors.Conflict("Order already exists")
		}
		return errors.Internal("Failed to create order", err)
	}
	return nil
}

func (r *firestoreOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	doc, err := getDoc(ctx, r.client.Collection(ordersCollection).Doc(id))
	if err != nil {
		if isNotFound(err) {
			return nil, errors.OrderNotFound(err)
		}
		return nil, errors.Internal("Failed to get order", err)
	}
	return orderFromDoc(doc)
}

// GetForUpdate is a transactional read; Firestore aborts and reruns the
// transaction if the document changes before commit.
func (r *firestoreOrderRepository) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *firestoreOrderRepository) Update(ctx context.Context, order *entity.Order) error {
	if err := setDoc(ctx, r.client.Collection(ordersCollection).Doc(order.ID), toFirestoreOrder(order)); err != nil {
		return errors.Internal("Failed to update order", err)
	}
	if order.Status.IsTerminal() {
		if err := deleteDoc(ctx, r.client.Collection(activeItemsCollection).Doc(order.ItemID)); err != nil {
			return errors.Internal("Failed to release item claim", err)
		}
	}
	return nil
}

func (r *firestoreOrderRepository) HasActiveOrderForItem(ctx context.Context, itemID string) (bool, error) {
	_, err := getDoc(ctx, r.client.Collection(activeItemsCollection).Doc(itemID))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Internal("Failed to check item claim", err)
	}
	return true, nil
}

func (r *firestoreOrderRepository) List(ctx context.Context, filter repository.OrderFilter, limit, offset int) ([]*entity.Order, int64, error) {
	query := r.client.Collection(ordersCollection).Query
	if filter.BuyerID != "" {
		query = query.Where("buyerId", "==", filter.BuyerID)
	}
	if filter.SellerID != "" {
		query = query.Where("sellerId", "==", filter.SellerID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	countDocs, err := queryDocs(ctx, query).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count orders", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	orders, err := r.collect(queryDocs(ctx, query))
	return orders, total, err
}

func (r *firestoreOrderRepository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	query := r.client.Collection(ordersCollection).
		Where("status", "==", string(entity.OrderStatusEscrowHeld)).
		Where("deadlineAt", "<=", now).
		OrderBy("deadlineAt", firestore.Asc).
		Limit(limit)
	return r.collect(queryDocs(ctx, query))
}

func (r *firestoreOrderRepository) ListTradeOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	query := r.client.Collection(ordersCollection).
		Where("status", "in", []string{string(entity.OrderStatusInTrade), string(entity.OrderStatusAwaitConfirm)}).
		Where("tradeDeadlineAt", "<=", now).
		OrderBy("tradeDeadlineAt", firestore.Asc).
		Limit(limit)
	return r.collect(queryDocs(ctx, query))
}

func (r *firestoreOrderRepository) collect(iter *firestore.DocumentIterator) ([]*entity.Order, error) {
	defer iter.Stop()

	var orders []*entity.Order
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate orders", err)
		}
		order, err := orderFromDoc(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func toFirestoreOrder(o *entity.Order) *firestoreOrder {
	doc := &firestoreOrder{
		ID:                o.ID,
		ItemID:            o.ItemID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		Quantity:          o.Quantity,
		UnitPrice:         o.UnitPrice.String(),
		Total:             o.Total.String(),
		Status:            string(o.Status),
		Active:            !o.Status.IsTerminal(),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		DeadlineAt:        o.DeadlineAt,
		SellerAcceptedAt:  o.SellerAcceptedAt,
		TradeDeadlineAt:   o.TradeDeadlineAt,
		SellerConfirmedAt: o.SellerConfirmedAt,
		BuyerConfirmedAt:  o.BuyerConfirmedAt,
		CompletedAt:       o.CompletedAt,
		CancelledAt:       o.CancelledAt,
		CancelledBy:       o.CancelledBy,
		CancelReason:      o.CancelReason,
		ExpiredAt:         o.ExpiredAt,
		DisputedAt:        o.DisputedAt,
		DisputedBy:        o.DisputedBy,
		DisputeReasonCode: o.DisputeReasonCode,
		MessageSeq:        o.MessageSeq,
	}
	if o.Resolution != nil {
		doc.Resolution = &firestoreResolution{
			SellerPercentage: o.Resolution.SellerPercentage.String(),
			SellerAmount:     o.Resolution.SellerAmount.String(),
			BuyerAmount:      o.Resolution.BuyerAmount.String(),
			Note:             o.Resolution.Note,
			AdminID:          o.Resolution.AdminID,
			ResolvedAt:       o.Resolution.ResolvedAt,
		}
	}
	return doc
}

func orderFromDoc(doc *firestore.DocumentSnapshot) (*entity.Order, error) {
	var stored firestoreOrder
	if err := doc.DataTo(&stored); err != nil {
		return nil, errors.Internal("Failed to parse order data", err)
	}

	unitPrice, err := decimal.NewFromString(stored.UnitPrice)
	if err != nil {
		return nil, errors.Internal("Failed to parse order price", err)
	}
	total, err := decimal.NewFromString(stored.Total)
	if err != nil {
		return nil, errors.Internal("Failed to parse order total", err)
	}

	order := &entity.Order{
		ID:                stored.ID,
		ItemID:            stored.ItemID,
		BuyerID:           stored.BuyerID,
		SellerID:          stored.SellerID,
		Quantity:          stored.Quantity,
		UnitPrice:         unitPrice,
		Total:             total,
		Status:            entity.OrderStatus(stored.Status),
		CreatedAt:         stored.CreatedAt,
		UpdatedAt:         stored.UpdatedAt,
		DeadlineAt:        stored.DeadlineAt,
		SellerAcceptedAt:  stored.SellerAcceptedAt,
		TradeDeadlineAt:   stored.TradeDeadlineAt,
		SellerConfirmedAt: stored.SellerConfirmedAt,
		BuyerConfirmedAt:  stored.BuyerConfirmedAt,
		CompletedAt:       stored.CompletedAt,
		CancelledAt:       stored.CancelledAt,
		CancelledBy:       stored.CancelledBy,
		CancelReason:      stored.CancelReason,
		ExpiredAt:         stored.ExpiredAt,
		DisputedAt:        stored.DisputedAt,
		DisputedBy:        stored.DisputedBy,
		DisputeReasonCode: stored.DisputeReasonCode,
		MessageSeq:        stored.MessageSeq,
	}

	if res := stored.Resolution; res != nil {
		pct, _ := decimal.NewFromString(res.SellerPercentage)
		sellerAmount, _ := decimal.NewFromString(res.SellerAmount)
		buyerAmount, _ := decimal.NewFromString(res.BuyerAmount)
		order.Resolution = &entity.DisputeResolution{
			SellerPercentage: pct,
			SellerAmount:     sellerAmount,
			BuyerAmount:      buyerAmount,
			Note:             res.Note,
			AdminID:          res.AdminID,
			ResolvedAt:       res.ResolvedAt,
		}
	}
	return order, nil
}

type firestoreIdempotencyRepository struct {
	client *firestore.Client
}

func NewFirestoreIdempotencyRepository(client *firestore.Client) repository.IdempotencyRepository {
	return &firestoreIdempotencyRepository{client: client}
}

type firestoreIdempotencyKey struct {
	BuyerID   string    `firestore:"buyerId"`
	Key       string    `firestore:"key"`
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (r *firestoreIdempotencyRepository) ref(buyerID, key string) *firestore.DocumentRef {
	return r.client.Collection(idempotencyKeyCollection).Doc(buyerID + "_" + key)
}

func (r *firestoreIdempotencyRepository) Get(ctx context.Context, buyerID, key string) (string, error) {
	doc, err := getDoc(ctx, r.ref(buyerID, key))
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", errors.Internal("Failed to read idempotency key", err)
	}
	var stored firestoreIdempotencyKey
	if err := doc.DataTo(&stored); err != nil {
		return "", errors.Internal("Failed to parse idempotency key", err)
	}
	return stored.OrderID, nil
}

func (r *firestoreIdempotencyRepository) Save(ctx context.Context, buyerID, key, orderID string, createdAt time.Time) error {
	err := createDoc(ctx, r.ref(buyerID, key), firestoreIdempotencyKey{
		BuyerID:   buyerID,
		Key:       key,
		OrderID:   orderID,
		CreatedAt: createdAt,
	})
	if err != nil {
		if isAlreadyExists(err) {
			return errors.Conflict("Idempotency key already used")
		}
		return errors.Internal("Failed to save idempotency key", err)
	}
	return nil
}
