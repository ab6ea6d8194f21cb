package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gamescrow/pkg/errors"
)

// Wallet is a user's position in the ledger. Available funds are
// Balance - Held; Held never exceeds Balance.
type Wallet struct {
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	Held      decimal.Decimal `json:"held"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type WalletView struct {
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	Held      decimal.Decimal `json:"held"`
	Available decimal.Decimal `json:"available"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewWallet(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Balance:   decimal.Zero,
		Held:      decimal.Zero,
		UpdatedAt: now,
	}
}

func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Held)
}

func (w *Wallet) View() WalletView {
	return WalletView{
		UserID:    w.UserID,
		Balance:   w.Balance,
		Held:      w.Held,
		Available: w.Available(),
		UpdatedAt: w.UpdatedAt,
	}
}

// Hold reserves amount out of the available funds.
func (w *Wallet) Hold(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.Available().LessThan(amount) {
		return errors.InsufficientFunds(fmt.Sprintf("Insufficient funds: available %s, required %s", w.Available(), amount))
	}
	w.Held = w.Held.Add(amount)
	return w.Check()
}

// Release returns held funds to the available balance.
func (w *Wallet) Release(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.Held.LessThan(amount) {
		return errors.InvariantViolation(fmt.Sprintf("cannot release %s, only %s held for %s", amount, w.Held, w.UserID), nil)
	}
	w.Held = w.Held.Sub(amount)
	return w.Check()
}

// DebitHeld consumes previously held funds: both held and balance go down.
func (w *Wallet) DebitHeld(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.Held.LessThan(amount) {
		return errors.InvariantViolation(fmt.Sprintf("cannot debit %s, only %s held for %s", amount, w.Held, w.UserID), nil)
	}
	w.Held = w.Held.Sub(amount)
	w.Balance = w.Balance.Sub(amount)
	return w.Check()
}

func (w *Wallet) Credit(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w.Balance = w.Balance.Add(amount)
	return w.Check()
}

// Check verifies 0 <= held <= balance.
func (w *Wallet) Check() error {
	if w.Held.IsNegative() || w.Balance.IsNegative() || w.Held.GreaterThan(w.Balance) {
		return errors.InvariantViolation(fmt.Sprintf("wallet %s out of bounds: balance=%s held=%s", w.UserID, w.Balance, w.Held), nil)
	}
	return nil
}

func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Validation("amount must be positive")
	}
	return nil
}

type WalletEntryType string

const (
	WalletEntryDeposit      WalletEntryType = "deposit"
	WalletEntryHold         WalletEntryType = "hold"
	WalletEntryRelease      WalletEntryType = "release"
	WalletEntrySettleDebit  WalletEntryType = "settle_debit"
	WalletEntrySettleCredit WalletEntryType = "settle_credit"
	WalletEntrySplitRefund  WalletEntryType = "split_refund"
)

// WalletEntry is one append-only line of a user's ledger history.
type WalletEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Type         WalletEntryType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	HeldAfter    decimal.Decimal `json:"heldAfter"`
	Reference    string          `json:"reference,omitempty"` // order id, or admin id for deposits
	CreatedAt    time.Time       `json:"createdAt"`
}
