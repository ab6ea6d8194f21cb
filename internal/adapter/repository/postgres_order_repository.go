package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
)

const orderColumns = `id, item_id, buyer_id, seller_id, quantity, unit_price, total, status,
	created_at, updated_at, deadline_at, seller_accepted_at, trade_deadline_at,
	seller_confirmed_at, buyer_confirmed_at, completed_at, cancelled_at, cancelled_by,
	cancel_reason, expired_at, disputed_at, disputed_by, dispute_reason_code,
	resolution_seller_pct, resolution_seller_amount, resolution_buyer_amount,
	resolution_note, resolution_admin_id, resolved_at, message_seq`

type postgresOrderRepository struct {
	store *PostgresStore
}

func NewPostgresOrderRepository(store *PostgresStore) repository.OrderRepository {
	return &postgresOrderRepository{store: store}
}

func (r *postgresOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		orderArgs(order)...)
	if err != nil {
		if isUniqueViolation(err, "idx_orders_active_item") {
			return errors.Conflict("Item already has an active order")
		}
		if isUniqueViolation(err, "") {
			return errors.Conflict("Order already exists")
		}
		return errors.Internal("Failed to create order", err)
	}
	return nil
}

func (r *postgresOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	row := r.store.q(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *postgresOrderRepository) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if inPostgresTx(ctx) {
		query += ` FOR UPDATE`
	}
	return scanOrder(r.store.q(ctx).QueryRowContext(ctx, query, id))
}

func (r *postgresOrderRepository) Update(ctx context.Context, order *entity.Order) error {
	resolution := resolutionArgs(order.Resolution)
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE orders SET
			status = $2, updated_at = $3, seller_accepted_at = $4, trade_deadline_at = $5,
			seller_confirmed_at = $6, buyer_confirmed_at = $7, completed_at = $8,
			cancelled_at = $9, cancelled_by = $10, cancel_reason = $11, expired_at = $12,
			disputed_at = $13, disputed_by = $14, dispute_reason_code = $15,
			resolution_seller_pct = $16, resolution_seller_amount = $17, resolution_buyer_amount = $18,
			resolution_note = $19, resolution_admin_id = $20, resolved_at = $21, message_seq = $22
		WHERE id = $1`,
		order.ID, string(order.Status), order.UpdatedAt,
		nullTime(order.SellerAcceptedAt), nullTime(order.TradeDeadlineAt),
		nullTime(order.SellerConfirmedAt), nullTime(order.BuyerConfirmedAt), nullTime(order.CompletedAt),
		nullTime(order.CancelledAt), order.CancelledBy, order.CancelReason, nullTime(order.ExpiredAt),
		nullTime(order.DisputedAt), order.DisputedBy, order.DisputeReasonCode,
		resolution[0], resolution[1], resolution[2], resolution[3], resolution[4], resolution[5],
		order.MessageSeq,
	)
	if err != nil {
		return errors.Internal("Failed to update order", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.OrderNotFound(nil)
	}
	return nil
}

func (r *postgresOrderRepository) HasActiveOrderForItem(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := r.store.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE item_id = $1 AND status = ANY($2))`,
		itemID, pq.Array(statusStrings(entity.ActiveOrderStatuses)),
	).Scan(&exists)
	if err != nil {
		return false, errors.Internal("Failed to check active orders", err)
	}
	return exists, nil
}

func (r *postgresOrderRepository) List(ctx context.Context, filter repository.OrderFilter, limit, offset int) ([]*entity.Order, int64, error) {
	var where []string
	var args []interface{}
	if filter.BuyerID != "" {
		args = append(args, filter.BuyerID)
		where = append(where, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.store.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count orders", err)
	}

	args = append(args, limit, offset)
	rows, err := r.store.q(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders`+clause+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list orders", err)
	}
	orders, err := scanOrders(rows)
	return orders, total, err
}

func (r *postgresOrderRepository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE status = 'ESCROW_HELD' AND deadline_at <= $1
		ORDER BY deadline_at ASC LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, errors.Internal("Failed to list expiring orders", err)
	}
	return scanOrders(rows)
}

func (r *postgresOrderRepository) ListTradeOverdue(ctx context.Context, now time.Time, limit int) ([]*entity.Order, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE status IN ('IN_TRADE', 'AWAIT_CONFIRM') AND trade_deadline_at <= $1
		ORDER BY trade_deadline_at ASC LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, errors.Internal("Failed to list overdue orders", err)
	}
	return scanOrders(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	var status string
	var sellerAcceptedAt, tradeDeadlineAt, sellerConfirmedAt, buyerConfirmedAt sql.NullTime
	var completedAt, cancelledAt, expiredAt, disputedAt, resolvedAt sql.NullTime
	var resPct, resSellerAmount, resBuyerAmount decimal.NullDecimal
	var resNote, resAdminID string

	err := row.Scan(
		&o.ID, &o.ItemID, &o.BuyerID, &o.SellerID, &o.Quantity, &o.UnitPrice, &o.Total, &status,
		&o.CreatedAt, &o.UpdatedAt, &o.DeadlineAt, &sellerAcceptedAt, &tradeDeadlineAt,
		&sellerConfirmedAt, &buyerConfirmedAt, &completedAt, &cancelledAt, &o.CancelledBy,
		&o.CancelReason, &expiredAt, &disputedAt, &o.DisputedBy, &o.DisputeReasonCode,
		&resPct, &resSellerAmount, &resBuyerAmount,
		&resNote, &resAdminID, &resolvedAt, &o.MessageSeq,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.OrderNotFound(err)
		}
		return nil, errors.Internal("Failed to read order", err)
	}

	o.Status = entity.OrderStatus(status)
	o.SellerAcceptedAt = timePtr(sellerAcceptedAt)
	o.TradeDeadlineAt = timePtr(tradeDeadlineAt)
	o.SellerConfirmedAt = timePtr(sellerConfirmedAt)
	o.BuyerConfirmedAt = timePtr(buyerConfirmedAt)
	o.CompletedAt = timePtr(completedAt)
	o.CancelledAt = timePtr(cancelledAt)
	o.ExpiredAt = timePtr(expiredAt)
	o.DisputedAt = timePtr(disputedAt)

	if resolvedAt.Valid {
		o.Resolution = &entity.DisputeResolution{
			SellerPercentage: resPct.Decimal,
			SellerAmount:     resSellerAmount.Decimal,
			BuyerAmount:      resBuyerAmount.Decimal,
			Note:             resNote,
			AdminID:          resAdminID,
			ResolvedAt:       resolvedAt.Time,
		}
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*entity.Order, error) {
	defer rows.Close()

	var orders []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate orders", err)
	}
	return orders, nil
}

func orderArgs(o *entity.Order) []interface{} {
	res := resolutionArgs(o.Resolution)
	return []interface{}{
		o.ID, o.ItemID, o.BuyerID, o.SellerID, o.Quantity, o.UnitPrice, o.Total, string(o.Status),
		o.CreatedAt, o.UpdatedAt, o.DeadlineAt, nullTime(o.SellerAcceptedAt), nullTime(o.TradeDeadlineAt),
		nullTime(o.SellerConfirmedAt), nullTime(o.BuyerConfirmedAt), nullTime(o.CompletedAt),
		nullTime(o.CancelledAt), o.CancelledBy, o.CancelReason, nullTime(o.ExpiredAt),
		nullTime(o.DisputedAt), o.DisputedBy, o.DisputeReasonCode,
		res[0], res[1], res[2], res[3], res[4], res[5], o.MessageSeq,
	}
}

// resolutionArgs flattens the resolution into its six columns.
func resolutionArgs(res *entity.DisputeResolution) [6]interface{} {
	if res == nil {
		return [6]interface{}{decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}, "", "", sql.NullTime{}}
	}
	return [6]interface{}{
		decimal.NewNullDecimal(res.SellerPercentage),
		decimal.NewNullDecimal(res.SellerAmount),
		decimal.NewNullDecimal(res.BuyerAmount),
		res.Note,
		res.AdminID,
		sql.NullTime{Time: res.ResolvedAt, Valid: true},
	}
}

func statusStrings(statuses []entity.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

type postgresIdempotencyRepository struct {
	store *PostgresStore
}

func NewPostgresIdempotencyRepository(store *PostgresStore) repository.IdempotencyRepository {
	return &postgresIdempotencyRepository{store: store}
}

func (r *postgresIdempotencyRepository) Get(ctx context.Context, buyerID, key string) (string, error) {
	var orderID string
	err := r.store.q(ctx).QueryRowContext(ctx,
		`SELECT order_id FROM idempotency_keys WHERE buyer_id = $1 AND key = $2`, buyerID, key,
	).Scan(&orderID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Internal("Failed to read idempotency key", err)
	}
	return orderID, nil
}

func (r *postgresIdempotencyRepository) Save(ctx context.Context, buyerID, key, orderID string, createdAt time.Time) error {
	_, err := r.store.q(ctx).ExecContext(ctx,
		`INSERT INTO idempotency_keys (buyer_id, key, order_id, created_at) VALUES ($1, $2, $3, $4)`,
		buyerID, key, orderID, createdAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return errors.Conflict("Idempotency key already used")
		}
		return errors.Internal("Failed to save idempotency key", err)
	}
	return nil
}
