// internal/engine/balance.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/metrics"
)

// refreshBalance periodically reconciles the on-chain wallet balance into
// the aggregate stats and reports goal progress.
func (e *Engine) refreshBalance(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.BalanceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		balance, err := e.prices.WalletBalance(ctx, e.wallet)
		if err != nil {
			e.logger.Warn("Balance refresh failed", zap.Error(err))
			continue
		}
		if err := e.manager.SetCurrentBalance(ctx, balance); err != nil {
			e.logger.Warn("Failed to persist balance", zap.Error(err))
			continue
		}
		metrics.WalletBalanceSOL.Set(balance)

		stats := e.manager.Stats()
		e.logger.Info("💼 Balance refreshed",
			zap.Float64("balance_sol", balance),
			zap.Float64("goal_progress_pct", stats.GoalProgress))

		_ = e.bus.Publish(events.BalanceUpdatedEvent{
			BaseEvent: events.BaseEvent{
				EventType: events.BalanceUpdated,
				EventTime: time.Now(),
			},
			BalanceSOL:   balance,
			GoalProgress: stats.GoalProgress,
		})
	}
}
