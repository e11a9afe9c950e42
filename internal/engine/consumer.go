// internal/engine/consumer.go
package engine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/metrics"
	"github.com/openclaw/copytrader/internal/position"
	"github.com/openclaw/copytrader/internal/storage/models"
)

// consumeSignals drains the durable queue one signal at a time. Serial
// consumption keeps position accounting free of execution races.
func (e *Engine) consumeSignals(ctx context.Context) error {
	for {
		sig, err := e.signals.PopPending(ctx)
		if err != nil {
			return err
		}
		if sig == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.QueuePoll):
			}
			continue
		}
		e.processSignal(ctx, sig)
	}
}

func (e *Engine) processSignal(ctx context.Context, sig *models.Signal) {
	logger := e.logger.With(
		zap.String("signal_id", sig.ID),
		zap.String("mint", sig.TokenMint),
		zap.String("symbol", sig.TokenSymbol))

	ok, reason := e.strategy.ShouldEnter(sig, e.manager.OpenCount(), e.manager.Has(sig.TokenMint))
	if !ok {
		logger.Info("⏭️ Signal skipped", zap.String("reason", reason))
		e.finishSignal(ctx, sig.ID, models.SignalSkipped, reason)
		return
	}

	balance := e.manager.Stats().CurrentBalance
	size := e.strategy.PositionSize(balance)
	if balance < size+feeReserveSOL {
		logger.Warn("⏭️ Insufficient balance for position",
			zap.Float64("balance", balance), zap.Float64("size", size))
		e.finishSignal(ctx, sig.ID, models.SignalSkipped, "insufficient balance")
		return
	}

	swap, err := e.trader.Buy(ctx, sig.TokenMint, size)
	if err != nil {
		logger.Error("❌ Buy failed", zap.Error(err))
		e.finishSignal(ctx, sig.ID, models.SignalFailed, "buy failed")
		return
	}

	tokens, err := e.trader.TokenBalanceUI(ctx, sig.TokenMint)
	if err != nil || tokens <= 0 {
		// The swap went through but the fill is not visible yet. The quoted
		// amount is in base units, so it must be scaled by the mint's
		// decimals to land in the same units the price feed uses.
		decimals, derr := e.trader.TokenDecimals(ctx, sig.TokenMint)
		if derr != nil {
			logger.Error("❌ Fill unknown after buy, manual reconciliation required",
				zap.String("signature", swap.Signature),
				zap.NamedError("balance_err", err),
				zap.NamedError("decimals_err", derr))
			e.finishSignal(ctx, sig.ID, models.SignalFailed, "fill unknown")
			return
		}
		tokens = float64(swap.OutputAmount) / math.Pow10(int(decimals))
		logger.Warn("Token balance unavailable after buy, using scaled quote",
			zap.Uint8("decimals", decimals), zap.Error(err))
	}

	solPrice, err := e.prices.SOLPrice(ctx)
	if err != nil {
		logger.Warn("SOL price unavailable at entry", zap.Error(err))
	}
	entryPrice := 0.0
	if tokens > 0 && solPrice > 0 {
		entryPrice = size * solPrice / tokens
	}

	pos, err := e.manager.Open(ctx, position.OpenParams{
		TokenMint:      sig.TokenMint,
		TokenSymbol:    sig.TokenSymbol,
		EntryPrice:     entryPrice,
		EntrySOL:       size,
		TokenAmount:    tokens,
		SourceWallet:   sig.WalletAddress,
		EntrySignature: swap.Signature,
	})
	if err != nil {
		logger.Error("❌ Failed to record position", zap.Error(err))
		e.finishSignal(ctx, sig.ID, models.SignalFailed, "position open failed")
		return
	}

	e.finishSignal(ctx, sig.ID, models.SignalExecuted, "")
	metrics.TradesOpened.Inc()
	metrics.OpenPositions.Set(float64(e.manager.OpenCount()))

	logger.Info("🟢 Position opened",
		zap.Float64("entry_sol", size),
		zap.Float64("tokens", tokens),
		zap.String("signature", swap.Signature),
		zap.Bool("confirmed", swap.Confirmed))

	_ = e.bus.Publish(events.TradeOpenedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.TradeOpened,
			EventTime: time.Now(),
		},
		PositionID:   pos.ID,
		TokenMint:    pos.TokenMint,
		TokenSymbol:  pos.TokenSymbol,
		EntrySOL:     pos.EntrySOL,
		EntryPrice:   pos.EntryPrice,
		TokenAmount:  pos.TokenAmount,
		Signature:    swap.Signature,
		SourceWallet: pos.SourceWallet,
	})
}

func (e *Engine) finishSignal(ctx context.Context, id string, outcome models.SignalStatus, reason string) {
	if err := e.signals.Complete(ctx, id, outcome); err != nil {
		e.logger.Error("Failed to finalize signal",
			zap.String("signal_id", id), zap.Error(err))
	}
	metrics.SignalsProcessed.WithLabelValues(string(outcome)).Inc()
	if outcome == models.SignalSkipped {
		_ = e.bus.Publish(events.SignalSkippedEvent{
			BaseEvent: events.BaseEvent{
				EventType: events.SignalSkipped,
				EventTime: time.Now(),
			},
			SignalID: id,
			Reason:   reason,
		})
	}
}
