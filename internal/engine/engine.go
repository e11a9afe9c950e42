// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/copytrader/internal/dex"
	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/position"
	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/strategy"
	"github.com/openclaw/copytrader/internal/watch"
)

// feeReserveSOL is kept untouched so closes always have gas.
const feeReserveSOL = 0.01

const loopRestartDelay = 5 * time.Second

// Trader executes swaps. Satisfied by the Jupiter client.
type Trader interface {
	Buy(ctx context.Context, mint string, solAmount float64) (*dex.Swap, error)
	SellPercent(ctx context.Context, mint string, percent float64) (*dex.Swap, error)
	TokenBalanceUI(ctx context.Context, mint string) (float64, error)
	TokenDecimals(ctx context.Context, mint string) (uint8, error)
}

// PriceSource serves prices and the wallet balance. Satisfied by the oracle.
type PriceSource interface {
	TokenPrice(ctx context.Context, mint string) (float64, error)
	SOLPrice(ctx context.Context) (float64, error)
	WalletBalance(ctx context.Context, pubkey solana.PublicKey) (float64, error)
}

// Options tune the engine's loop cadence.
type Options struct {
	QueuePoll      time.Duration
	PositionTick   time.Duration
	BalanceRefresh time.Duration
}

func (o *Options) defaults() {
	if o.QueuePoll <= 0 {
		o.QueuePoll = 2 * time.Second
	}
	if o.PositionTick <= 0 {
		o.PositionTick = 15 * time.Second
	}
	if o.BalanceRefresh <= 0 {
		o.BalanceRefresh = time.Minute
	}
}

// Engine wires the monitor, the signal consumer, the position monitor and
// the balance updater into one supervised unit.
type Engine struct {
	monitor  *watch.Monitor
	stream   *watch.Stream // nil when no websocket endpoint is configured
	signals  storage.SignalRepository
	strategy *strategy.Strategy
	manager  *position.Manager
	trader   Trader
	prices   PriceSource
	bus      *events.Bus
	wallet   solana.PublicKey
	opts     Options
	logger   *zap.Logger
}

func New(
	monitor *watch.Monitor,
	stream *watch.Stream,
	signals storage.SignalRepository,
	strat *strategy.Strategy,
	manager *position.Manager,
	trader Trader,
	prices PriceSource,
	bus *events.Bus,
	walletPub solana.PublicKey,
	opts Options,
	logger *zap.Logger,
) *Engine {
	opts.defaults()
	return &Engine{
		monitor:  monitor,
		stream:   stream,
		signals:  signals,
		strategy: strat,
		manager:  manager,
		trader:   trader,
		prices:   prices,
		bus:      bus,
		wallet:   walletPub,
		opts:     opts,
		logger:   logger.Named("engine"),
	}
}

// Run starts every loop and blocks until the context is cancelled. A loop
// that returns an error is logged and restarted; only context cancellation
// stops the engine.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(e.supervised(ctx, "wallet_monitor", e.monitor.Run))
	g.Go(e.supervised(ctx, "signal_consumer", e.consumeSignals))
	g.Go(e.supervised(ctx, "position_monitor", e.monitorPositions))
	g.Go(e.supervised(ctx, "balance_updater", e.refreshBalance))
	if e.stream != nil {
		g.Go(e.supervised(ctx, "activity_stream", e.stream.Run))
	}

	e.logger.Info("🟢 Engine started")
	err := g.Wait()
	e.logger.Info("🔴 Engine stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// supervised restarts a loop on failure until the context ends.
func (e *Engine) supervised(ctx context.Context, name string, loop func(context.Context) error) func() error {
	return func() error {
		for {
			err := loop(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("Loop crashed, restarting",
				zap.String("loop", name),
				zap.Error(err),
				zap.Duration("delay", loopRestartDelay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(loopRestartDelay):
			}
		}
	}
}
