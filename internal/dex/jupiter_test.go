// internal/dex/jupiter_test.go
package dex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/wallet"
)

func testWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := wallet.NewWallet(key.String())
	require.NoError(t, err)
	return w
}

func TestQuoteParsesRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, SOLMint, q.Get("inputMint"))
		assert.Equal(t, "mint1", q.Get("outputMint"))
		assert.Equal(t, "1500000000", q.Get("amount"))
		assert.Equal(t, "150", q.Get("slippageBps"))

		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"inputMint":      SOLMint,
			"outputMint":     "mint1",
			"inAmount":       "1500000000",
			"outAmount":      "987654",
			"priceImpactPct": "0.42",
		}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, testWallet(t), zap.NewNop())
	q, err := c.Quote(context.Background(), SOLMint, "mint1", 1_500_000_000, buySlippageBps)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), q.InAmount)
	assert.Equal(t, uint64(987_654), q.OutAmount)
	assert.InDelta(t, 0.42, q.PriceImpactPct, 1e-9)
}

func TestQuoteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, testWallet(t), zap.NewNop())
	_, err := c.Quote(context.Background(), SOLMint, "mint1", 1, buySlippageBps)
	assert.Error(t, err)
}

func TestBuyRejectsDustAmount(t *testing.T) {
	c := NewClient("", "", nil, testWallet(t), zap.NewNop())
	_, err := c.Buy(context.Background(), "mint1", 0)
	assert.Error(t, err)
}

func TestBuyRejectsUnroutableToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"inAmount":  "1000000000",
			"outAmount": "0",
		}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, testWallet(t), zap.NewNop())
	_, err := c.Buy(context.Background(), "mint1", 1.0)
	assert.ErrorContains(t, err, "no route")
}

func TestSellPercentValidatesRange(t *testing.T) {
	c := NewClient("", "", nil, testWallet(t), zap.NewNop())

	for _, pct := range []float64{0, -10, 101} {
		_, err := c.SellPercent(context.Background(), "mint1", pct)
		assert.Error(t, err, "percent %f", pct)
	}
}
