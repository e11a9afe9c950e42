// internal/engine/engine_test.go
package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/dex"
	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/position"
	"github.com/openclaw/copytrader/internal/storage/memory"
	"github.com/openclaw/copytrader/internal/storage/models"
	"github.com/openclaw/copytrader/internal/strategy"
)

type fakeTrader struct {
	buys        []string
	sells       []string
	tokens      float64 // UI balance reported after a buy
	quoteOut    uint64  // base units promised by the buy quote
	proceeds    uint64  // lamports returned per sell
	buyErr      error
	balanceErr  error
	decimalsErr error
	decimals    uint8
}

func (f *fakeTrader) Buy(_ context.Context, mint string, solAmount float64) (*dex.Swap, error) {
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	f.buys = append(f.buys, mint)
	return &dex.Swap{
		Signature:    fmt.Sprintf("buy-%s-%d", mint, len(f.buys)),
		Confirmed:    true,
		InputAmount:  uint64(solAmount * 1e9),
		OutputAmount: f.quoteOut,
	}, nil
}

func (f *fakeTrader) SellPercent(_ context.Context, mint string, _ float64) (*dex.Swap, error) {
	f.sells = append(f.sells, mint)
	return &dex.Swap{
		Signature:    fmt.Sprintf("sell-%s-%d", mint, len(f.sells)),
		Confirmed:    true,
		OutputAmount: f.proceeds,
	}, nil
}

func (f *fakeTrader) TokenBalanceUI(_ context.Context, _ string) (float64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.tokens, nil
}

func (f *fakeTrader) TokenDecimals(_ context.Context, _ string) (uint8, error) {
	if f.decimalsErr != nil {
		return 0, f.decimalsErr
	}
	return f.decimals, nil
}

type fakePrices struct {
	tokenPrice float64
	solPrice   float64
	balance    float64
}

func (f *fakePrices) TokenPrice(_ context.Context, _ string) (float64, error) {
	return f.tokenPrice, nil
}
func (f *fakePrices) SOLPrice(_ context.Context) (float64, error) { return f.solPrice, nil }
func (f *fakePrices) WalletBalance(_ context.Context, _ solana.PublicKey) (float64, error) {
	return f.balance, nil
}

type testRig struct {
	engine  *Engine
	store   *memory.Store
	trader  *fakeTrader
	prices  *fakePrices
	manager *position.Manager
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	store := memory.New()
	manager, err := position.NewManager(context.Background(), store.Positions(), 3, 10, 100, zap.NewNop())
	require.NoError(t, err)

	trader := &fakeTrader{tokens: 1_000_000, proceeds: 4_000_000_000, decimals: 6}
	prices := &fakePrices{tokenPrice: 0.001, solPrice: 200, balance: 10}
	bus := events.NewBus(zap.NewNop(), 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	e := New(nil, nil, store.Signals(), strategy.New(strategy.DefaultConfig()),
		manager, trader, prices, bus, solana.PublicKey{}, Options{}, zap.NewNop())

	return &testRig{engine: e, store: store, trader: trader, prices: prices, manager: manager}
}

func pushSignal(t *testing.T, rig *testRig, mint string) *models.Signal {
	t.Helper()
	sig := &models.Signal{
		ID:             uuid.New().String(),
		TokenMint:      mint,
		TokenSymbol:    "TEST",
		WalletAddress:  "walletA",
		WalletScore:    2000,
		WalletWinRate:  0.70,
		BuySOL:         2,
		TokenLiquidity: 100_000,
		Status:         models.SignalPending,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, rig.store.Signals().Push(context.Background(), sig))
	return sig
}

func popOutcome(t *testing.T, rig *testRig, sig *models.Signal) {
	t.Helper()
	popped, err := rig.store.Signals().PopPending(context.Background())
	require.NoError(t, err)
	require.NotNil(t, popped)
	require.Equal(t, sig.ID, popped.ID)
	rig.engine.processSignal(context.Background(), popped)
}

func TestProcessSignalOpensPosition(t *testing.T) {
	rig := newTestRig(t)
	sig := pushSignal(t, rig, "mint1")

	popOutcome(t, rig, sig)

	assert.Equal(t, []string{"mint1"}, rig.trader.buys)
	assert.True(t, rig.manager.Has("mint1"))

	p := rig.manager.OpenPositions()[0]
	// 7 SOL position at SOL=$200 over 1M tokens.
	assert.InDelta(t, 7.0, p.EntrySOL, 1e-9)
	assert.InDelta(t, 0.0014, p.EntryPrice, 1e-9)
}

func TestProcessSignalSkipsFailedAdmission(t *testing.T) {
	rig := newTestRig(t)
	sig := pushSignal(t, rig, "mint1")
	sig.WalletScore = 100 // below the efficiency floor

	rig.engine.processSignal(context.Background(), sig)

	assert.Empty(t, rig.trader.buys)
	assert.False(t, rig.manager.Has("mint1"))
}

func TestProcessSignalSkipsWhenBalanceTooLow(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.manager.SetCurrentBalance(context.Background(), 0.005))
	sig := pushSignal(t, rig, "mint1")

	popOutcome(t, rig, sig)

	assert.Empty(t, rig.trader.buys)
}

func TestProcessSignalMarksFailureOnBuyError(t *testing.T) {
	rig := newTestRig(t)
	rig.trader.buyErr = fmt.Errorf("no route")
	sig := pushSignal(t, rig, "mint1")

	popOutcome(t, rig, sig)

	assert.False(t, rig.manager.Has("mint1"))
	// The signal must be terminal, not redelivered.
	next, err := rig.store.Signals().PopPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestProcessSignalScalesQuoteWhenBalanceUnavailable(t *testing.T) {
	rig := newTestRig(t)
	rig.trader.balanceErr = fmt.Errorf("account not found")
	// 2e9 base units at 6 decimals is 2000 tokens in price-feed units.
	rig.trader.quoteOut = 2_000_000_000
	sig := pushSignal(t, rig, "mint1")

	popOutcome(t, rig, sig)

	require.True(t, rig.manager.Has("mint1"))
	p := rig.manager.OpenPositions()[0]
	assert.InDelta(t, 2000.0, p.TokenAmount, 1e-9)
	// 7 SOL at SOL=$200 over 2000 tokens.
	assert.InDelta(t, 0.7, p.EntryPrice, 1e-9)
}

func TestProcessSignalFailsWhenFillUnknown(t *testing.T) {
	rig := newTestRig(t)
	rig.trader.balanceErr = fmt.Errorf("account not found")
	rig.trader.decimalsErr = fmt.Errorf("rpc down")
	sig := pushSignal(t, rig, "mint1")

	popOutcome(t, rig, sig)

	assert.Equal(t, []string{"mint1"}, rig.trader.buys)
	assert.False(t, rig.manager.Has("mint1"))
	next, err := rig.store.Signals().PopPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestTickPositionTakesProfit(t *testing.T) {
	rig := newTestRig(t)
	sig := pushSignal(t, rig, "mint1")
	popOutcome(t, rig, sig)

	// Price up 50% from entry triggers TP1 selling half.
	rig.prices.tokenPrice = 0.0021
	rig.engine.tickPosition(context.Background(), "mint1")

	assert.Equal(t, []string{"mint1"}, rig.trader.sells)
	p := rig.manager.OpenPositions()[0]
	assert.True(t, p.TP1Hit)
	assert.InDelta(t, 50.0, p.RemainingPercent, 1e-9)
	assert.Equal(t, models.PositionPartial, p.Status)
}

func TestTickPositionStopsOut(t *testing.T) {
	rig := newTestRig(t)
	sig := pushSignal(t, rig, "mint1")
	popOutcome(t, rig, sig)

	rig.trader.proceeds = 5_000_000_000
	rig.prices.tokenPrice = 0.001 // -28.6% from the 0.0014 entry
	rig.engine.tickPosition(context.Background(), "mint1")

	assert.Equal(t, []string{"mint1"}, rig.trader.sells)
	assert.False(t, rig.manager.Has("mint1"))
}

func TestTickPositionHoldsInsideBand(t *testing.T) {
	rig := newTestRig(t)
	sig := pushSignal(t, rig, "mint1")
	popOutcome(t, rig, sig)

	rig.prices.tokenPrice = 0.0015 // +7%, nothing triggers
	rig.engine.tickPosition(context.Background(), "mint1")

	assert.Empty(t, rig.trader.sells)
	assert.True(t, rig.manager.Has("mint1"))
}
