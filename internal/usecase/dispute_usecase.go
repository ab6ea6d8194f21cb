package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/utils"
)

type DisputeUseCase struct {
	orderRepo repository.OrderRepository
	wallet    *WalletUseCase
	runner    *transitionRunner
}

// NewDisputeUseCase shares the order usecase's transition path so disputes
// take the same per-order lock as every other transition.
func NewDisputeUseCase(orders *OrderUseCase) *DisputeUseCase {
	return &DisputeUseCase{
		orderRepo: orders.orderRepo,
		wallet:    orders.wallet,
		runner:    orders.runner,
	}
}

type ResolveDisputeInput struct {
	SellerPercentage decimal.Decimal
	Note             string
}

// Resolve splits a disputed order's held total between seller and buyer and
// completes it. The seller share is rounded half-to-even at the currency
// scale and the buyer gets the exact remainder.
func (uc *DisputeUseCase) Resolve(ctx context.Context, orderID string, admin entity.Actor, input ResolveDisputeInput) (*entity.Order, error) {
	if !admin.IsAdmin() {
		return nil, errors.Forbidden("Only admins can resolve disputes", nil)
	}
	if input.SellerPercentage.IsNegative() || input.SellerPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.Validation("sellerPercentage must be between 0 and 100")
	}

	return uc.runner.run(ctx, orderID, entity.OrderActionResolve, admin.UserID,
		func(ctx context.Context, order *entity.Order, now time.Time) (string, error) {
			sellerAmount, buyerAmount, err := entity.SplitAmounts(order.Total, input.SellerPercentage, uc.wallet.Scale())
			if err != nil {
				return "", err
			}
			err = order.Resolve(entity.DisputeResolution{
				SellerPercentage: input.SellerPercentage,
				SellerAmount:     sellerAmount,
				BuyerAmount:      buyerAmount,
				Note:             input.Note,
				AdminID:          admin.UserID,
				ResolvedAt:       now,
			})
			if err != nil {
				return "", err
			}
			if err := uc.wallet.SplitSettle(ctx, order.BuyerID, order.SellerID, order.Total, sellerAmount, order.ID); err != nil {
				return "", err
			}
			return entity.OrderActionResolve, nil
		})
}

// ListDisputes is the admin queue of orders waiting for a decision.
func (uc *DisputeUseCase) ListDisputes(ctx context.Context, pagination utils.PaginationParams) ([]*entity.Order, int64, error) {
	filter := repository.OrderFilter{Status: entity.OrderStatusDisputed}
	return uc.orderRepo.List(ctx, filter, pagination.PageSize, pagination.Offset)
}
