// internal/engine/positions.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/metrics"
	"github.com/openclaw/copytrader/internal/position"
	"github.com/openclaw/copytrader/internal/strategy"
)

// monitorPositions ticks over every open position, refreshing prices and
// acting on exit verdicts.
func (e *Engine) monitorPositions(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.PositionTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, p := range e.manager.OpenPositions() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.tickPosition(ctx, p.TokenMint)
		}
		metrics.OpenPositions.Set(float64(e.manager.OpenCount()))
	}
}

func (e *Engine) tickPosition(ctx context.Context, mint string) {
	logger := e.logger.With(zap.String("mint", mint))

	price, err := e.prices.TokenPrice(ctx, mint)
	if err != nil {
		logger.Warn("Price unavailable", zap.Error(err))
		return
	}
	solPrice, err := e.prices.SOLPrice(ctx)
	if err != nil {
		logger.Warn("SOL price unavailable", zap.Error(err))
		return
	}

	e.strategy.RecordPrice(mint, price)

	p, err := e.manager.UpdatePrice(ctx, mint, price, solPrice)
	if err != nil {
		logger.Warn("Failed to update position price", zap.Error(err))
		return
	}

	action, sellPercent := e.strategy.CheckExit(p)
	if !action.Sells() {
		if action == strategy.ExitMomentumHold {
			logger.Debug("🚀 Momentum hold", zap.Float64("pnl_pct", p.PnLPercent))
		}
		return
	}

	logger.Info("📉 Exit triggered",
		zap.String("action", string(action)),
		zap.Float64("pnl_pct", p.PnLPercent),
		zap.Float64("sell_pct", sellPercent))

	swap, err := e.trader.SellPercent(ctx, mint, sellPercent)
	if err != nil {
		logger.Error("❌ Sell failed", zap.Error(err))
		return
	}
	proceeds := float64(swap.OutputAmount) / 1e9

	res, err := e.manager.PartialClose(ctx, mint, sellPercent, proceeds,
		swap.Signature, closeReason(action), swap.Confirmed)
	if err != nil {
		logger.Error("❌ Failed to record close", zap.Error(err))
		return
	}
	if !res.Applied {
		return
	}

	final := !res.Position.Status.Active()
	if final {
		e.strategy.ForgetToken(mint)
	}

	metrics.TradesClosed.WithLabelValues(string(closeReason(action))).Inc()
	metrics.RealizedPnLSOL.Set(e.manager.Stats().TotalPnLSOL)
	metrics.OpenPositions.Set(float64(e.manager.OpenCount()))

	logger.Info("💰 Close recorded",
		zap.String("reason", string(closeReason(action))),
		zap.Float64("sold_pct", res.SoldPercent),
		zap.Float64("realized_sol", res.RealizedPnL),
		zap.Bool("final", final))

	_ = e.bus.Publish(events.TradeExitedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.TradeExited,
			EventTime: time.Now(),
		},
		PositionID:  res.Position.ID,
		TokenMint:   mint,
		Reason:      string(closeReason(action)),
		SoldPercent: res.SoldPercent,
		RealizedPnL: res.RealizedPnL,
		Signature:   swap.Signature,
		Final:       final,
	})
}

func closeReason(action strategy.ExitAction) position.CloseReason {
	switch action {
	case strategy.ExitStopLoss:
		return position.ReasonStop
	case strategy.ExitTakeProfit1:
		return position.ReasonTP1
	case strategy.ExitTakeProfit2:
		return position.ReasonTP2
	case strategy.ExitStagnation:
		return position.ReasonStagnation
	default:
		return position.ReasonManual
	}
}
