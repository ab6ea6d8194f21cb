package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/utils"
)

func TestDisputeUseCase_ThirtyPercentToSeller(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000.00")
	order := env.inTrade(t)

	order, err := env.orders.Dispute(env.ctx, order.ID, testBuyer, "NOT_DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusDisputed, order.Status)
	assert.True(t, env.walletOf(t, testBuyer).Held.Equal(dec("1000")))

	disputes, total, err := env.disputes.ListDisputes(env.ctx, utils.NewPaginationParams(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, order.ID, disputes[0].ID)

	order, err = env.disputes.Resolve(env.ctx, order.ID, adminActor, ResolveDisputeInput{
		SellerPercentage: decimal.NewFromInt(30),
		Note:             "partial delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.Resolution)
	assert.True(t, order.Resolution.SellerAmount.Equal(dec("300")))
	assert.True(t, order.Resolution.BuyerAmount.Equal(dec("700")))
	assert.Equal(t, adminActor.UserID, order.Resolution.AdminID)

	buyer := env.walletOf(t, testBuyer)
	seller := env.walletOf(t, testSeller)
	assert.True(t, buyer.Balance.Equal(dec("700")))
	assert.True(t, buyer.Held.IsZero())
	assert.True(t, seller.Balance.Equal(dec("300")))

	page, err := env.chat.ListMessages(env.ctx, order.ID, adminActor, ListMessagesInput{})
	require.NoError(t, err)
	last := page.Messages[len(page.Messages)-1]
	assert.Equal(t, entity.OrderActionResolve, last.Metadata["action"])
	assert.Contains(t, last.Body, "300")
}

func TestDisputeUseCase_FullRefund(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.inTrade(t)
	_, err := env.orders.Dispute(env.ctx, order.ID, testSeller, "")
	require.NoError(t, err)

	_, err = env.disputes.Resolve(env.ctx, order.ID, adminActor, ResolveDisputeInput{SellerPercentage: decimal.Zero})
	require.NoError(t, err)

	assert.True(t, env.walletOf(t, testBuyer).Balance.Equal(dec("1000")))
	assert.True(t, env.walletOf(t, testSeller).Balance.IsZero())
}

func TestDisputeUseCase_Guards(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "1000")
	order := env.inTrade(t)

	_, err := env.disputes.Resolve(env.ctx, order.ID, adminActor, ResolveDisputeInput{SellerPercentage: decimal.NewFromInt(50)})
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = env.orders.Dispute(env.ctx, order.ID, testBuyer, "")
	require.NoError(t, err)

	_, err = env.disputes.Resolve(env.ctx, order.ID, buyerActor, ResolveDisputeInput{SellerPercentage: decimal.NewFromInt(50)})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = env.disputes.Resolve(env.ctx, order.ID, adminActor, ResolveDisputeInput{SellerPercentage: decimal.NewFromInt(101)})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	// nothing moved
	assert.True(t, env.walletOf(t, testBuyer).Held.Equal(dec("1000")))

	_, err = env.orders.Cancel(env.ctx, order.ID, adminActor, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}
