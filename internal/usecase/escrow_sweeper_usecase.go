package usecase

import (
	"context"
	"time"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/domain/repository"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/metrics"
)

const sweepBatchSize = 100

// EscrowSweeper drives the deadline transitions nobody triggers by hand:
// expiring unaccepted orders and escalating trades that outlived their window.
type EscrowSweeper struct {
	orderRepo  repository.OrderRepository
	orders     *OrderUseCase
	clock      Clock
	interval   time.Duration
	escalation bool
}

func NewEscrowSweeper(orders *OrderUseCase, interval time.Duration, escalation bool) *EscrowSweeper {
	return &EscrowSweeper{
		orderRepo:  orders.orderRepo,
		orders:     orders,
		clock:      orders.clock,
		interval:   interval,
		escalation: escalation,
	}
}

type SweepResult struct {
	Expired   int
	Escalated int
	Skipped   int
}

// RunOnce processes every order that is due at the time of the call. An
// order that moved on in the meantime (accepted, cancelled) is skipped.
func (s *EscrowSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.clock.Now()

	due, err := s.orderRepo.ListDueForExpiry(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for _, order := range due {
		if _, err := s.orders.Expire(ctx, order.ID); err != nil {
			s.skip(&result, order, "expire", err)
			continue
		}
		result.Expired++
		metrics.SweeperOrdersTotal.WithLabelValues("expired").Inc()
	}

	if !s.escalation {
		return result, nil
	}

	overdue, err := s.orderRepo.ListTradeOverdue(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for _, order := range overdue {
		if _, err := s.orders.EscalateOverdue(ctx, order.ID); err != nil {
			s.skip(&result, order, "escalate", err)
			continue
		}
		result.Escalated++
		metrics.SweeperOrdersTotal.WithLabelValues("escalated").Inc()
	}
	return result, nil
}

func (s *EscrowSweeper) skip(result *SweepResult, order *entity.Order, action string, err error) {
	result.Skipped++
	metrics.SweeperOrdersTotal.WithLabelValues("skipped").Inc()
	if errors.Is(err, errors.CodeInvalidTransition) {
		logger.Debug("Sweeper: %s skipped for order %s: %v", action, order.ID, err)
		return
	}
	logger.Error("Sweeper: %s failed for order %s: %v", action, order.ID, err)
}

// Run sweeps every interval until ctx is cancelled. A panicking sweep is
// logged and the loop keeps going.
func (s *EscrowSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Escrow sweeper started (every %s, escalation=%t)", s.interval, s.escalation)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Escrow sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *EscrowSweeper) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Sweeper panic: %v", r)
		}
	}()

	result, err := s.RunOnce(ctx)
	if err != nil {
		logger.Error("Sweeper run failed: %v", err)
		return
	}
	if result.Expired+result.Escalated+result.Skipped > 0 {
		logger.Info("Sweeper: %d expired, %d escalated, %d skipped", result.Expired, result.Escalated, result.Skipped)
	}
}
