package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
)

func TestEscrowSweeper_ExpiresUnacceptedOrders(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.buy(t)

	result, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)

	env.clock.Advance(time.Hour + time.Second)

	result, err = env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	order, err = env.orders.GetOrder(env.ctx, order.ID, buyerActor)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusExpired, order.Status)
	assert.True(t, env.walletOf(t, testBuyer).Held.IsZero())

	// idempotent
	result, err = env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

func TestEscrowSweeper_AcceptedBeforeDeadlineIsKept(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.buy(t)

	env.clock.Advance(time.Hour - time.Second)
	_, err := env.orders.Accept(env.ctx, order.ID, testSeller)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	result, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Expired)

	order, err = env.orders.GetOrder(env.ctx, order.ID, buyerActor)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusInTrade, order.Status)
}

func TestEscrowSweeper_EscalatesOverdueTrades(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.inTrade(t)

	env.clock.Advance(24 * time.Hour)

	result, err := env.sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	order, err = env.orders.GetOrder(env.ctx, order.ID, buyerActor)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusDisputed, order.Status)
	assert.Equal(t, entity.TradeWindowElapsedReason, order.DisputeReasonCode)
	assert.True(t, env.walletOf(t, testBuyer).Held.Equal(dec("1000")))
}

func TestEscrowSweeper_EscalationDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.inTrade(t)

	sweeper := NewEscrowSweeper(env.orders, time.Minute, false)
	env.clock.Advance(48 * time.Hour)

	result, err := sweeper.RunOnce(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Escalated)

	order, err = env.orders.GetOrder(env.ctx, order.ID, buyerActor)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusInTrade, order.Status)
}

func TestEscrowSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewEscrowSweeper(env.orders, 10*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
