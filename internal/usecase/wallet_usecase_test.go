package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/utils"
)

func TestWalletUseCase_Deposit(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.wallet.Deposit(env.ctx, testBuyer, dec("10.125"), adminActor.UserID)
	require.NoError(t, err)
	assert.Equal(t, "10.12", view.Balance.StringFixed(2))
	assert.True(t, view.Held.IsZero())
	assert.True(t, view.Available.Equal(view.Balance))

	_, err = env.wallet.Deposit(env.ctx, testBuyer, dec("0.004"), adminActor.UserID)
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = env.wallet.Deposit(env.ctx, testBuyer, dec("-5"), adminActor.UserID)
	assert.True(t, errors.Is(err, errors.CodeValidation))

	assert.Equal(t, "10.12", env.walletOf(t, testBuyer).Balance.StringFixed(2))
}

func TestWalletUseCase_UnknownUserHasEmptyWallet(t *testing.T) {
	env := newTestEnv(t)

	view := env.walletOf(t, "nobody")
	assert.Equal(t, "nobody", view.UserID)
	assert.True(t, view.Balance.IsZero())
	assert.True(t, view.Held.IsZero())
}

func TestWalletUseCase_CheckAmount(t *testing.T) {
	env := newTestEnv(t)

	assert.NoError(t, env.wallet.CheckAmount(dec("1.50")))
	assert.NoError(t, env.wallet.CheckAmount(dec("1.5")))
	assert.True(t, errors.Is(env.wallet.CheckAmount(dec("1.505")), errors.CodeValidation))
	assert.True(t, errors.Is(env.wallet.CheckAmount(dec("0")), errors.CodeValidation))
}

func TestWalletUseCase_HoldAndRelease(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "100")

	require.NoError(t, env.wallet.Hold(env.ctx, testBuyer, dec("60"), "order-1"))
	w := env.walletOf(t, testBuyer)
	assert.Equal(t, "40.00", w.Available.StringFixed(2))

	err := env.wallet.Hold(env.ctx, testBuyer, dec("41"), "order-2")
	assert.True(t, errors.Is(err, errors.CodeInsufficientFunds))

	require.NoError(t, env.wallet.Release(env.ctx, testBuyer, dec("60"), "order-1"))
	w = env.walletOf(t, testBuyer)
	assert.Equal(t, "100.00", w.Available.StringFixed(2))
	assert.True(t, w.Held.IsZero())

	err = env.wallet.Release(env.ctx, testBuyer, dec("1"), "order-1")
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))
}

func TestWalletUseCase_SplitSettle(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "100")
	require.NoError(t, env.wallet.Hold(env.ctx, testBuyer, dec("80"), "order-1"))

	require.NoError(t, env.wallet.SplitSettle(env.ctx, testBuyer, testSeller, dec("80"), dec("24"), "order-1"))

	buyer := env.walletOf(t, testBuyer)
	seller := env.walletOf(t, testSeller)
	assert.Equal(t, "76.00", buyer.Balance.StringFixed(2))
	assert.True(t, buyer.Held.IsZero())
	assert.Equal(t, "24.00", seller.Balance.StringFixed(2))
	// money is conserved
	assert.Equal(t, "100.00", buyer.Balance.Add(seller.Balance).StringFixed(2))

	entries, total, err := env.wallet.ListEntries(env.ctx, testBuyer, utils.NewPaginationParams(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, entity.WalletEntrySplitRefund, entries[0].Type)
	assert.Equal(t, entity.WalletEntrySettleDebit, entries[1].Type)
	assert.Equal(t, entity.WalletEntryHold, entries[2].Type)
	assert.Equal(t, entity.WalletEntryDeposit, entries[3].Type)
}

func TestWalletUseCase_SplitSettleGuards(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, testBuyer, "100")
	require.NoError(t, env.wallet.Hold(env.ctx, testBuyer, dec("50"), "order-1"))

	err := env.wallet.SplitSettle(env.ctx, testBuyer, testSeller, dec("50"), dec("51"), "order-1")
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))

	err = env.wallet.SplitSettle(env.ctx, testBuyer, testBuyer, dec("50"), dec("10"), "order-1")
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))

	err = env.wallet.Settle(env.ctx, testBuyer, testSeller, dec("60"), "order-1")
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))

	// failed settlements leave both wallets untouched
	buyer := env.walletOf(t, testBuyer)
	assert.Equal(t, "100.00", buyer.Balance.StringFixed(2))
	assert.Equal(t, "50.00", buyer.Held.StringFixed(2))
	assert.True(t, env.walletOf(t, testSeller).Balance.IsZero())
}
