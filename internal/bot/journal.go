// internal/bot/journal.go
package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/events"
)

// attachJournal subscribes a trade journal to the bus so every lifecycle
// event lands in the log in one place, independent of which loop produced
// it.
func attachJournal(bus *events.Bus, logger *zap.Logger) {
	journal := logger.Named("journal")

	bus.Subscribe(events.TradeOpened, func(_ context.Context, e events.Event) error {
		evt, ok := e.(events.TradeOpenedEvent)
		if !ok {
			return nil
		}
		journal.Info("📖 OPEN",
			zap.String("token", evt.TokenSymbol),
			zap.String("mint", evt.TokenMint),
			zap.Float64("entry_sol", evt.EntrySOL),
			zap.String("source", evt.SourceWallet),
			zap.String("signature", evt.Signature))
		return nil
	})

	bus.Subscribe(events.TradeExited, func(_ context.Context, e events.Event) error {
		evt, ok := e.(events.TradeExitedEvent)
		if !ok {
			return nil
		}
		journal.Info("📖 EXIT",
			zap.String("mint", evt.TokenMint),
			zap.String("reason", evt.Reason),
			zap.Float64("sold_pct", evt.SoldPercent),
			zap.Float64("realized_sol", evt.RealizedPnL),
			zap.Bool("final", evt.Final),
			zap.String("signature", evt.Signature))
		return nil
	})

	bus.Subscribe(events.SignalSkipped, func(_ context.Context, e events.Event) error {
		evt, ok := e.(events.SignalSkippedEvent)
		if !ok {
			return nil
		}
		journal.Debug("📖 SKIP",
			zap.String("signal_id", evt.SignalID),
			zap.String("reason", evt.Reason))
		return nil
	})

	bus.Subscribe(events.BalanceUpdated, func(_ context.Context, e events.Event) error {
		evt, ok := e.(events.BalanceUpdatedEvent)
		if !ok {
			return nil
		}
		journal.Debug("📖 BALANCE",
			zap.Float64("sol", evt.BalanceSOL),
			zap.Float64("goal_progress_pct", evt.GoalProgress))
		return nil
	})
}
