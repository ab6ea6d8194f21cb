package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/metrics"
	"gamescrow/pkg/utils"
)

// WalletUseCase is the ledger. Every operation runs in a transaction and
// joins the caller's when one is already open, so an order transition and
// its money movement commit together.
type WalletUseCase struct {
	walletRepo repository.WalletRepository
	tx         repository.Transactor
	scale      int32
	clock      Clock
}

func NewWalletUseCase(walletRepo repository.WalletRepository, tx repository.Transactor, scale int32, clock Clock) *WalletUseCase {
	if clock == nil {
		clock = SystemClock
	}
	return &WalletUseCase{
		walletRepo: walletRepo,
		tx:         tx,
		scale:      scale,
		clock:      clock,
	}
}

// CheckAmount rejects amounts that are not positive or carry more precision
// than the currency scale.
func (uc *WalletUseCase) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Round(uc.scale)) {
		return errors.Validation(fmt.Sprintf("amount must have at most %d decimal places", uc.scale))
	}
	return nil
}

func (uc *WalletUseCase) Scale() int32 {
	return uc.scale
}

// Hold reserves amount of userID's available funds.
func (uc *WalletUseCase) Hold(ctx context.Context, userID string, amount decimal.Decimal, reference string) error {
	if err := uc.CheckAmount(amount); err != nil {
		return err
	}
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := uc.walletRepo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := w.Hold(amount); err != nil {
			return err
		}
		return uc.save(ctx, reference, walletChange{w, entity.WalletEntryHold, amount})
	})
	if err == nil {
		metrics.WalletOperationsTotal.WithLabelValues("hold").Inc()
	}
	return err
}

// Release returns held funds to userID's available balance.
func (uc *WalletUseCase) Release(ctx context.Context, userID string, amount decimal.Decimal, reference string) error {
	if err := uc.CheckAmount(amount); err != nil {
		return err
	}
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := uc.walletRepo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := w.Release(amount); err != nil {
			return err
		}
		return uc.save(ctx, reference, walletChange{w, entity.WalletEntryRelease, amount})
	})
	if err == nil {
		metrics.WalletOperationsTotal.WithLabelValues("release").Inc()
	}
	return err
}

// Settle moves amount from the payer's held funds to the payee's balance.
func (uc *WalletUseCase) Settle(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, reference string) error {
	if err := uc.CheckAmount(amount); err != nil {
		return err
	}
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		wallets, err := uc.lockPair(ctx, fromUserID, toUserID)
		if err != nil {
			return err
		}
		from, to := wallets[fromUserID], wallets[toUserID]

		if err := from.DebitHeld(amount); err != nil {
			return err
		}
		if err := to.Credit(amount); err != nil {
			return err
		}
		return uc.save(ctx, reference,
			walletChange{from, entity.WalletEntrySettleDebit, amount},
			walletChange{to, entity.WalletEntrySettleCredit, amount},
		)
	})
	if err == nil {
		metrics.WalletOperationsTotal.WithLabelValues("settle").Inc()
	}
	return err
}

// SplitSettle consumes the buyer's hold of total, credits sellerAmount to
// the seller and gives the remainder back to the buyer.
func (uc *WalletUseCase) SplitSettle(ctx context.Context, buyerID, sellerID string, total, sellerAmount decimal.Decimal, reference string) error {
	if err := uc.CheckAmount(total); err != nil {
		return err
	}
	if sellerAmount.IsNegative() || sellerAmount.GreaterThan(total) {
		return errors.InvariantViolation(fmt.Sprintf("seller amount %s outside [0, %s]", sellerAmount, total), nil)
	}
	buyerAmount := total.Sub(sellerAmount)

	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		wallets, err := uc.lockPair(ctx, buyerID, sellerID)
		if err != nil {
			return err
		}
		buyer, seller := wallets[buyerID], wallets[sellerID]

		if err := buyer.DebitHeld(total); err != nil {
			return err
		}
		changes := []walletChange{{buyer, entity.WalletEntrySettleDebit, total}}

		if sellerAmount.IsPositive() {
			if err := seller.Credit(sellerAmount); err != nil {
				return err
			}
			changes = append(changes, walletChange{seller, entity.WalletEntrySettleCredit, sellerAmount})
		}
		if buyerAmount.IsPositive() {
			if err := buyer.Credit(buyerAmount); err != nil {
				return err
			}
			changes = append(changes, walletChange{buyer, entity.WalletEntrySplitRefund, buyerAmount})
		}
		return uc.save(ctx, reference, changes...)
	})
	if err == nil {
		metrics.WalletOperationsTotal.WithLabelValues("split_settle").Inc()
	}
	return err
}

// Deposit credits userID. It is the admin stand-in for verified top-ups.
func (uc *WalletUseCase) Deposit(ctx context.Context, userID string, amount decimal.Decimal, adminID string) (*entity.WalletView, error) {
	amount = amount.RoundBank(uc.scale)
	if err := uc.CheckAmount(amount); err != nil {
		return nil, err
	}

	var view entity.WalletView
	err := uc.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := uc.walletRepo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := w.Credit(amount); err != nil {
			return err
		}
		if err := uc.save(ctx, adminID, walletChange{w, entity.WalletEntryDeposit, amount}); err != nil {
			return err
		}
		view = w.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WalletOperationsTotal.WithLabelValues("deposit").Inc()
	return &view, nil
}

func (uc *WalletUseCase) GetWallet(ctx context.Context, userID string) (*entity.WalletView, error) {
	w, err := uc.walletRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := w.View()
	return &view, nil
}

func (uc *WalletUseCase) ListEntries(ctx context.Context, userID string, pagination utils.PaginationParams) ([]*entity.WalletEntry, int64, error) {
	return uc.walletRepo.ListEntries(ctx, userID, pagination.PageSize, pagination.Offset)
}

type walletChange struct {
	wallet *entity.Wallet
	kind   entity.WalletEntryType
	amount decimal.Decimal
}

// lockPair reads both wallets for update in user id order so two
// settlements over the same pair cannot deadlock.
func (uc *WalletUseCase) lockPair(ctx context.Context, a, b string) (map[string]*entity.Wallet, error) {
	if a == b {
		return nil, errors.InvariantViolation("settlement needs two distinct wallets", nil)
	}
	ids := []string{a, b}
	sort.Strings(ids)

	wallets := make(map[string]*entity.Wallet, 2)
	for _, id := range ids {
		w, err := uc.walletRepo.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		wallets[id] = w
	}
	return wallets, nil
}

// save persists every touched wallet once and appends one entry per change.
// An entry records the wallet position after the whole operation.
func (uc *WalletUseCase) save(ctx context.Context, reference string, changes ...walletChange) error {
	now := uc.clock.Now()

	saved := make(map[string]bool, 2)
	for _, ch := range changes {
		if saved[ch.wallet.UserID] {
			continue
		}
		ch.wallet.UpdatedAt = now
		if err := uc.walletRepo.Save(ctx, ch.wallet); err != nil {
			return err
		}
		saved[ch.wallet.UserID] = true
	}

	for _, ch := range changes {
		entry := &entity.WalletEntry{
			ID:           uuid.New().String(),
			UserID:       ch.wallet.UserID,
			Type:         ch.kind,
			Amount:       ch.amount,
			BalanceAfter: ch.wallet.Balance,
			HeldAfter:    ch.wallet.Held,
			Reference:    reference,
			CreatedAt:    now,
		}
		if err := uc.walletRepo.AppendEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
