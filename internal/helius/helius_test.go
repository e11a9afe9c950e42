// internal/helius/helius_test.go
package helius

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRotator(t *testing.T, keys []string, budget int) *KeyRotator {
	t.Helper()
	r, err := NewKeyRotator(keys, budget, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRotatorRoundRobins(t *testing.T) {
	r := newTestRotator(t, []string{"k1", "k2"}, 10)
	ctx := context.Background()

	first, err := r.Get(ctx)
	require.NoError(t, err)
	second, err := r.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRotatorRejectsEmptyPool(t *testing.T) {
	_, err := NewKeyRotator(nil, 10, zap.NewNop())
	assert.Error(t, err)
}

func TestRotatorSkipsExhaustedKey(t *testing.T) {
	r := newTestRotator(t, []string{"k1", "k2"}, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := r.Get(ctx)
		require.NoError(t, err)
	}
	usage := r.Usage()
	assert.Equal(t, 2, usage["k1"])
	assert.Equal(t, 2, usage["k2"])
}

func TestRotatorBlocksUntilCancel(t *testing.T) {
	r := newTestRotator(t, []string{"k1"}, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Get(context.Background())
	require.NoError(t, err)

	_, err = r.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRotatorResetsWindow(t *testing.T) {
	r := newTestRotator(t, []string{"k1"}, 1)
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }
	for _, k := range r.keys {
		r.resetAt[k] = current
	}

	key, wait := r.tryAcquire()
	assert.Equal(t, "k1", key)
	assert.Zero(t, wait)

	key, wait = r.tryAcquire()
	assert.Empty(t, key)
	assert.Positive(t, wait)

	current = current.Add(2 * time.Minute)
	key, _ = r.tryAcquire()
	assert.Equal(t, "k1", key)
}

func TestParseSwapClassification(t *testing.T) {
	const wallet = "walletA"

	tests := []struct {
		name     string
		tx       Transaction
		wantNil  bool
		wantSide Side
		wantSOL  float64
	}{
		{
			name: "buy",
			tx: Transaction{
				Signature: "sig1",
				TokenTransfers: []TokenTransfer{
					{Mint: "mint1", ToUserAccount: wallet, TokenAmount: 500},
				},
				NativeTransfers: []NativeTransfer{
					{FromUserAccount: wallet, Amount: 1_500_000_000},
				},
			},
			wantSide: SideBuy,
			wantSOL:  1.5,
		},
		{
			name: "sell",
			tx: Transaction{
				Signature: "sig2",
				TokenTransfers: []TokenTransfer{
					{Mint: "mint1", FromUserAccount: wallet, TokenAmount: 500},
				},
				NativeTransfers: []NativeTransfer{
					{ToUserAccount: wallet, Amount: 2_000_000_000},
				},
			},
			wantSide: SideSell,
			wantSOL:  2.0,
		},
		{
			name: "wrapped native transfer is not a signal",
			tx: Transaction{
				Signature: "sig3",
				TokenTransfers: []TokenTransfer{
					{Mint: WSOLMint, ToUserAccount: wallet, TokenAmount: 1},
				},
			},
			wantNil: true,
		},
		{
			name: "stablecoin transfer is not a signal",
			tx: Transaction{
				Signature: "sig4",
				TokenTransfers: []TokenTransfer{
					{Mint: USDCMint, ToUserAccount: wallet, TokenAmount: 100},
				},
			},
			wantNil: true,
		},
		{
			name: "unrelated wallet",
			tx: Transaction{
				Signature: "sig5",
				TokenTransfers: []TokenTransfer{
					{Mint: "mint1", ToUserAccount: "walletB", FromUserAccount: "walletC"},
				},
			},
			wantNil: true,
		},
		{
			name:    "no token transfers",
			tx:      Transaction{Signature: "sig6"},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swap := ParseSwap(tt.tx, wallet)
			if tt.wantNil {
				assert.Nil(t, swap)
				return
			}
			require.NotNil(t, swap)
			assert.Equal(t, tt.wantSide, swap.Side)
			assert.InDelta(t, tt.wantSOL, swap.SOLAmount, 1e-9)
			assert.Equal(t, "mint1", swap.TokenMint)
		})
	}
}

func TestParseSwapSkipsExcludedLeg(t *testing.T) {
	// The WSOL leg of the pair is skipped; the real token leg classifies.
	tx := Transaction{
		Signature: "sig1",
		TokenTransfers: []TokenTransfer{
			{Mint: WSOLMint, FromUserAccount: "walletA", TokenAmount: 2},
			{Mint: "mint1", ToUserAccount: "walletA", TokenAmount: 500},
		},
		NativeTransfers: []NativeTransfer{
			{FromUserAccount: "walletA", Amount: 2_000_000_000},
		},
	}
	swap := ParseSwap(tx, "walletA")
	require.NotNil(t, swap)
	assert.Equal(t, SideBuy, swap.Side)
	assert.Equal(t, "mint1", swap.TokenMint)
}

func TestTradePerformanceAggregation(t *testing.T) {
	now := time.Now().Unix()
	history := []Transaction{
		// Buy 2 SOL of mint1, later sell for 3 SOL.
		{
			Signature: "s1", Timestamp: now - 100,
			TokenTransfers:  []TokenTransfer{{Mint: "mint1", ToUserAccount: "walletA", TokenAmount: 10}},
			NativeTransfers: []NativeTransfer{{FromUserAccount: "walletA", Amount: 2_000_000_000}},
		},
		{
			Signature: "s2", Timestamp: now - 50,
			TokenTransfers:  []TokenTransfer{{Mint: "mint1", FromUserAccount: "walletA", TokenAmount: 10}},
			NativeTransfers: []NativeTransfer{{ToUserAccount: "walletA", Amount: 3_000_000_000}},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(history))
	}))
	defer srv.Close()

	rotator := newTestRotator(t, []string{"k1"}, 100)
	client := NewClient(srv.URL, rotator, zap.NewNop())

	pnls, err := client.TradePerformance(context.Background(), "walletA")
	require.NoError(t, err)
	require.Len(t, pnls, 1)
	assert.Equal(t, "mint1", pnls[0].TokenMint)
	assert.InDelta(t, 2.0, pnls[0].SOLSpent, 1e-9)
	assert.InDelta(t, 3.0, pnls[0].SOLEarned, 1e-9)
	assert.True(t, pnls[0].Closed())
	assert.InDelta(t, 50.0, pnls[0].PnLPercent(), 1e-9)
}
