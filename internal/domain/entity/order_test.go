package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/pkg/errors"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testItem() *Item {
	return &Item{
		ID:       "item-1",
		SellerID: "seller-1",
		Price:    decimal.RequireFromString("1000.00"),
		Status:   ItemStatusActive,
	}
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("order-1", testItem(), "buyer-1", 1, t0, time.Hour)
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("order-1", testItem(), "buyer-1", 2, t0, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, OrderStatusEscrowHeld, o.Status)
	assert.Equal(t, "seller-1", o.SellerID)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, t0.Add(time.Hour), o.DeadlineAt)

	_, err = NewOrder("order-2", testItem(), "seller-1", 1, t0, time.Hour)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = NewOrder("order-3", testItem(), "buyer-1", 0, t0, time.Hour)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestOrder_HappyPath(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.Accept("seller-1", t0.Add(time.Minute), 2*time.Hour))
	assert.Equal(t, OrderStatusInTrade, o.Status)
	require.NotNil(t, o.TradeDeadlineAt)
	assert.Equal(t, t0.Add(time.Minute+2*time.Hour), *o.TradeDeadlineAt)

	completed, err := o.Confirm(SideSeller, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, OrderStatusAwaitConfirm, o.Status)

	completed, err = o.Confirm(SideBuyer, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)
}

func TestOrder_BuyerMayConfirmFirst(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Accept("seller-1", t0, time.Hour))

	completed, err := o.Confirm(SideBuyer, t0)
	require.NoError(t, err)
	assert.False(t, completed)

	completed, err = o.Confirm(SideSeller, t0)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestOrder_DoubleConfirmRejected(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Accept("seller-1", t0, time.Hour))
	_, err := o.Confirm(SideSeller, t0)
	require.NoError(t, err)

	_, err = o.Confirm(SideSeller, t0)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestOrder_Accept(t *testing.T) {
	t.Run("only seller", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.Accept("buyer-1", t0, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeForbidden))
		assert.Equal(t, OrderStatusEscrowHeld, o.Status)
	})

	t.Run("after deadline", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.Accept("seller-1", o.DeadlineAt, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	})

	t.Run("twice", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Accept("seller-1", t0, time.Hour))
		err := o.Accept("seller-1", t0, time.Hour)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	})
}

func TestOrder_ConfirmBeforeAccept(t *testing.T) {
	o := newTestOrder(t)
	_, err := o.Confirm(SideBuyer, t0)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestOrder_Cancel(t *testing.T) {
	buyer := Actor{UserID: "buyer-1", Role: RoleUser}
	seller := Actor{UserID: "seller-1", Role: RoleUser}
	admin := Actor{UserID: "admin-1", Role: RoleAdmin}
	stranger := Actor{UserID: "someone", Role: RoleUser}

	t.Run("buyer before accept", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Cancel(buyer, "changed my mind", t0))
		assert.Equal(t, OrderStatusCancelled, o.Status)
		assert.Equal(t, "buyer-1", o.CancelledBy)
	})

	t.Run("buyer after accept", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Accept("seller-1", t0, time.Hour))
		err := o.Cancel(buyer, "", t0)
		assert.True(t, errors.Is(err, errors.CodeForbidden))
	})

	t.Run("seller after accept", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Accept("seller-1", t0, time.Hour))
		require.NoError(t, o.Cancel(seller, "out of stock", t0))
	})

	t.Run("stranger", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.Cancel(stranger, "", t0)
		assert.True(t, errors.Is(err, errors.CodeForbidden))
	})

	t.Run("disputed", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Accept("seller-1", t0, time.Hour))
		require.NoError(t, o.Dispute("buyer-1", "NOT_DELIVERED", t0))
		err := o.Cancel(admin, "", t0)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	})

	t.Run("terminal", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Cancel(admin, "", t0))
		err := o.Cancel(admin, "", t0)
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	})
}

func TestOrder_Dispute(t *testing.T) {
	o := newTestOrder(t)
	err := o.Dispute("buyer-1", "", t0)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	require.NoError(t, o.Accept("seller-1", t0, time.Hour))
	err = o.Dispute("someone", "", t0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, o.Dispute("buyer-1", "NOT_DELIVERED", t0))
	assert.Equal(t, OrderStatusDisputed, o.Status)
	assert.Equal(t, "NOT_DELIVERED", o.DisputeReasonCode)
}

func TestOrder_Expire(t *testing.T) {
	o := newTestOrder(t)

	err := o.Expire(t0.Add(30 * time.Minute))
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	require.NoError(t, o.Expire(o.DeadlineAt))
	assert.Equal(t, OrderStatusExpired, o.Status)

	err = o.Accept("seller-1", o.DeadlineAt, time.Hour)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestOrder_EscalateOverdue(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Accept("seller-1", t0, time.Hour))

	err := o.EscalateOverdue(t0.Add(30 * time.Minute))
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	require.NoError(t, o.EscalateOverdue(t0.Add(time.Hour)))
	assert.Equal(t, OrderStatusDisputed, o.Status)
	assert.Equal(t, TradeWindowElapsedReason, o.DisputeReasonCode)
	assert.Empty(t, o.DisputedBy)
}

func TestOrder_Resolve(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Accept("seller-1", t0, time.Hour))
	require.NoError(t, o.Dispute("buyer-1", "", t0))

	seller, buyer, err := SplitAmounts(o.Total, decimal.NewFromInt(30), 2)
	require.NoError(t, err)

	bad := DisputeResolution{SellerAmount: seller, BuyerAmount: buyer.Add(decimal.NewFromInt(1)), ResolvedAt: t0}
	assert.True(t, errors.Is(o.Resolve(bad), errors.CodeInvariantViolation))

	require.NoError(t, o.Resolve(DisputeResolution{
		SellerPercentage: decimal.NewFromInt(30),
		SellerAmount:     seller,
		BuyerAmount:      buyer,
		AdminID:          "admin-1",
		ResolvedAt:       t0,
	}))
	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.True(t, o.Resolution.SellerAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, o.Resolution.BuyerAmount.Equal(decimal.NewFromInt(700)))
}

func TestSplitAmounts(t *testing.T) {
	tests := []struct {
		total  string
		pct    string
		seller string
		buyer  string
	}{
		{"1000.00", "30", "300", "700"},
		{"1000.00", "0", "0", "1000"},
		{"1000.00", "100", "1000", "0"},
		{"0.05", "50", "0.02", "0.03"},
		{"0.15", "50", "0.08", "0.07"},
		{"10.00", "33.333", "3.33", "6.67"},
	}

	for _, tt := range tests {
		t.Run(tt.total+"@"+tt.pct, func(t *testing.T) {
			seller, buyer, err := SplitAmounts(decimal.RequireFromString(tt.total), decimal.RequireFromString(tt.pct), 2)
			require.NoError(t, err)
			assert.True(t, seller.Equal(decimal.RequireFromString(tt.seller)), "seller %s", seller)
			assert.True(t, buyer.Equal(decimal.RequireFromString(tt.buyer)), "buyer %s", buyer)
		})
	}

	total := decimal.RequireFromString("123.45")
	for pct := 0; pct <= 100; pct++ {
		seller, buyer, err := SplitAmounts(total, decimal.NewFromInt(int64(pct)), 2)
		require.NoError(t, err)
		assert.True(t, seller.Add(buyer).Equal(total), "pct %d", pct)
	}

	_, _, err := SplitAmounts(total, decimal.NewFromInt(101), 2)
	assert.True(t, errors.Is(err, errors.CodeValidation))
	_, _, err = SplitAmounts(total, decimal.NewFromInt(-1), 2)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}
