// internal/watch/monitor.go
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/helius"
	"github.com/openclaw/copytrader/internal/metrics"
	"github.com/openclaw/copytrader/internal/pricing"
	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/models"
)

// TxSource is the slice of the activity API the monitor consumes.
type TxSource interface {
	Transactions(ctx context.Context, wallet string, limit int) ([]helius.Transaction, error)
	TradePerformance(ctx context.Context, wallet string) ([]helius.TokenPnL, error)
}

// TokenInfoSource provides market snapshots for signal enrichment.
type TokenInfoSource interface {
	TokenInfo(ctx context.Context, mint string) (*pricing.TokenInfo, error)
}

// Options tune the monitor's polling behavior.
type Options struct {
	CycleDelay   time.Duration // pause between full roster sweeps
	WalletDelay  time.Duration // pause between wallets inside a sweep
	FetchLimit   int           // transactions fetched per wallet per poll
	MaxTxAge     time.Duration // older swaps are stale and ignored
	MinBuySOL    float64       // single-buy conviction floor
	AccumWindow  time.Duration // accumulation lookback
	MinWinRate   float64       // recent-form gate threshold
	MinLiquidity float64       // informational: recorded on the signal
}

func (o *Options) defaults() {
	if o.CycleDelay <= 0 {
		o.CycleDelay = 30 * time.Second
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = 10
	}
	if o.MaxTxAge <= 0 {
		o.MaxTxAge = 5 * time.Minute
	}
	if o.MinBuySOL <= 0 {
		o.MinBuySOL = 1.0
	}
	if o.AccumWindow <= 0 {
		o.AccumWindow = 30 * time.Minute
	}
}

// Monitor polls watched wallets for fresh swaps, qualifies the buys and
// pushes signals onto the durable queue.
type Monitor struct {
	roster     *Roster
	source     TxSource
	tokenInfo  TokenInfoSource
	signals    storage.SignalRepository
	accum      *Accumulator
	smartMoney *SmartMoney
	logger     *zap.Logger
	opts       Options

	// cursors maps wallet -> last seen signature. A wallet's first poll
	// seeds the cursor without emitting, so history is never replayed.
	// CheckWallet runs from both the poll loop and the websocket stream,
	// so access goes through cursorMu.
	cursorMu sync.Mutex
	cursors  map[string]string

	now func() time.Time
}

func NewMonitor(
	roster *Roster,
	source TxSource,
	tokenInfo TokenInfoSource,
	signals storage.SignalRepository,
	opts Options,
	logger *zap.Logger,
) *Monitor {
	opts.defaults()
	return &Monitor{
		roster:     roster,
		source:     source,
		tokenInfo:  tokenInfo,
		signals:    signals,
		accum:      NewAccumulator(opts.AccumWindow, opts.MinBuySOL),
		smartMoney: NewSmartMoney(),
		logger:     logger.Named("monitor"),
		opts:       opts,
		cursors:    make(map[string]string),
		now:        time.Now,
	}
}

// SmartMoney exposes the aggregated buy interest.
func (m *Monitor) SmartMoney() *SmartMoney { return m.smartMoney }

// Run sweeps the roster until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("🟢 Wallet monitor started", zap.Int("wallets", m.roster.Len()))
	for {
		m.Cycle(ctx)
		m.smartMoney.Prune()

		select {
		case <-ctx.Done():
			m.logger.Info("🔴 Wallet monitor stopped")
			return ctx.Err()
		case <-time.After(m.opts.CycleDelay):
		}
	}
}

// Cycle polls every wallet in the roster once.
func (m *Monitor) Cycle(ctx context.Context) {
	for _, w := range m.roster.Wallets() {
		if ctx.Err() != nil {
			return
		}
		if err := m.CheckWallet(ctx, w); err != nil {
			m.logger.Warn("Wallet poll failed",
				zap.String("wallet", w.Address), zap.Error(err))
		}
		if m.opts.WalletDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.opts.WalletDelay):
			}
		}
	}
}

// CheckWallet fetches the wallet's latest transactions and emits signals
// for qualifying fresh buys. The cursor advances to the newest signature
// unconditionally, even when nothing qualified.
func (m *Monitor) CheckWallet(ctx context.Context, w QualifiedWallet) error {
	txs, err := m.source.Transactions(ctx, w.Address, m.opts.FetchLimit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return nil
	}

	m.cursorMu.Lock()
	cursor, seen := m.cursors[w.Address]
	m.cursors[w.Address] = txs[0].Signature
	m.cursorMu.Unlock()
	if !seen {
		// First poll only establishes the baseline.
		return nil
	}

	// Newest first; stop at the previous cursor.
	for _, tx := range txs {
		if tx.Signature == cursor {
			break
		}
		swap := helius.ParseSwap(tx, w.Address)
		if swap == nil || swap.Side != helius.SideBuy {
			continue
		}
		if m.now().Sub(swap.Timestamp) > m.opts.MaxTxAge {
			continue
		}
		m.handleBuy(ctx, w, swap)
	}
	return nil
}

func (m *Monitor) handleBuy(ctx context.Context, w QualifiedWallet, swap *helius.SwapEvent) {
	// Every buy feeds the accumulation window, including ones large enough
	// to qualify on their own, so a follow-up dust buy still triggers.
	accumulated := m.accum.Record(w.Address, swap.TokenMint, swap.SOLAmount)
	if accumulated {
		m.accum.Forget(w.Address, swap.TokenMint)
	}
	if swap.SOLAmount < m.opts.MinBuySOL {
		if !accumulated {
			return
		}
		m.logger.Info("📈 Accumulation threshold reached",
			zap.String("wallet", w.Address),
			zap.String("mint", swap.TokenMint))
	}

	perf := m.recentForm(ctx, w.Address)
	if !perf.PassesGate(m.opts.MinWinRate) {
		m.logger.Debug("Wallet failed recent-form gate",
			zap.String("wallet", w.Address),
			zap.Float64("win_rate", perf.WinRate),
			zap.Int("closed", perf.ClosedTrades))
		return
	}

	// Interest is recorded before the push so consumers always see the
	// emitting wallet counted.
	interest := m.smartMoney.RecordBuy(swap.TokenMint, w.Address, w.Tier)

	info := m.fetchTokenInfo(ctx, swap.TokenMint)

	sig := &models.Signal{
		ID:             uuid.New().String(),
		TokenMint:      swap.TokenMint,
		TokenSymbol:    info.Symbol,
		WalletAddress:  w.Address,
		WalletTier:     w.Tier,
		WalletScore:    w.EfficiencyScore,
		WalletWinRate:  perf.WinRate,
		BuySOL:         swap.SOLAmount,
		TokenLiquidity: info.LiquidityUSD,
		TokenMarketCap: info.MarketCap,
		Status:         models.SignalPending,
		CreatedAt:      m.now(),
	}
	if err := m.signals.Push(ctx, sig); err != nil {
		m.logger.Error("Failed to push signal",
			zap.String("mint", swap.TokenMint), zap.Error(err))
		return
	}
	metrics.SignalsDetected.Inc()

	m.logger.Info("🚨 Signal detected",
		zap.String("wallet", w.Address),
		zap.String("tier", w.Tier),
		zap.String("mint", swap.TokenMint),
		zap.String("symbol", info.Symbol),
		zap.Float64("buy_sol", swap.SOLAmount),
		zap.Int("smart_wallets", interest.Total))
}

func (m *Monitor) recentForm(ctx context.Context, wallet string) RecentPerformance {
	pnls, err := m.source.TradePerformance(ctx, wallet)
	if err != nil {
		m.logger.Debug("Trade performance unavailable",
			zap.String("wallet", wallet), zap.Error(err))
		// No evidence either way; the gate passes thin histories.
		return RecentPerformance{}
	}
	return Summarize(pnls)
}

func (m *Monitor) fetchTokenInfo(ctx context.Context, mint string) pricing.TokenInfo {
	if m.tokenInfo == nil {
		return pricing.TokenInfo{}
	}
	info, err := m.tokenInfo.TokenInfo(ctx, mint)
	if err != nil || info == nil {
		m.logger.Debug("Token info unavailable", zap.String("mint", mint))
		return pricing.TokenInfo{}
	}
	return *info
}
