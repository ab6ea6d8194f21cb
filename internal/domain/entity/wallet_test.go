package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/pkg/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWallet_HoldAndRelease(t *testing.T) {
	w := NewWallet("buyer-1", t0)
	require.NoError(t, w.Credit(d("1000")))

	require.NoError(t, w.Hold(d("600")))
	assert.True(t, w.Available().Equal(d("400")))

	err := w.Hold(d("400.01"))
	assert.True(t, errors.Is(err, errors.CodeInsufficientFunds))
	assert.True(t, w.Held.Equal(d("600")))

	require.NoError(t, w.Release(d("600")))
	assert.True(t, w.Held.IsZero())

	err = w.Release(d("1"))
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))
}

func TestWallet_DebitHeld(t *testing.T) {
	w := NewWallet("buyer-1", t0)
	require.NoError(t, w.Credit(d("1000")))
	require.NoError(t, w.Hold(d("1000")))

	require.NoError(t, w.DebitHeld(d("1000")))
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.Held.IsZero())

	err := w.DebitHeld(d("1"))
	assert.True(t, errors.Is(err, errors.CodeInvariantViolation))
}

func TestWallet_RejectsNonPositive(t *testing.T) {
	w := NewWallet("buyer-1", t0)
	assert.True(t, errors.Is(w.Credit(decimal.Zero), errors.CodeValidation))
	assert.True(t, errors.Is(w.Hold(d("-1")), errors.CodeValidation))
}

func TestWallet_Check(t *testing.T) {
	w := &Wallet{UserID: "u", Balance: d("10"), Held: d("11")}
	assert.True(t, errors.Is(w.Check(), errors.CodeInvariantViolation))
}
