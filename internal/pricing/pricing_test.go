// internal/pricing/pricing_test.go
package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func priceServer(t *testing.T, hits *atomic.Int64, price float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mint := r.URL.Query().Get("ids")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				mint: map[string]float64{"price": price},
			},
		}))
	}))
}

func TestTokenPriceCachesWithinTTL(t *testing.T) {
	var hits atomic.Int64
	srv := priceServer(t, &hits, 1.25)
	defer srv.Close()

	o := NewOracle(srv.URL, nil, zap.NewNop())
	ctx := context.Background()

	p1, err := o.TokenPrice(ctx, "mint1")
	require.NoError(t, err)
	p2, err := o.TokenPrice(ctx, "mint1")
	require.NoError(t, err)

	assert.InDelta(t, 1.25, p1, 1e-9)
	assert.InDelta(t, 1.25, p2, 1e-9)
	assert.Equal(t, int64(1), hits.Load())
}

func TestTokenPriceRefetchesAfterTTL(t *testing.T) {
	var hits atomic.Int64
	srv := priceServer(t, &hits, 1.25)
	defer srv.Close()

	o := NewOracle(srv.URL, nil, zap.NewNop())
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return current }
	ctx := context.Background()

	_, err := o.TokenPrice(ctx, "mint1")
	require.NoError(t, err)

	current = current.Add(tokenPriceTTL + time.Second)
	_, err = o.TokenPrice(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestPriceFallsBackToCacheOnFailure(t *testing.T) {
	var hits atomic.Int64
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mint := r.URL.Query().Get("ids")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{mint: map[string]float64{"price": 2.5}},
		}))
	}))
	defer srv.Close()

	o := NewOracle(srv.URL, nil, zap.NewNop())
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return current }
	ctx := context.Background()

	p, err := o.TokenPrice(ctx, "mint1")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, p, 1e-9)

	fail.Store(true)
	current = current.Add(tokenPriceTTL + time.Second)
	p, err = o.TokenPrice(ctx, "mint1")
	require.NoError(t, err, "stale cache should mask a transient failure")
	assert.InDelta(t, 2.5, p, 1e-9)
}

func TestPriceErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOracle(srv.URL, nil, zap.NewNop())
	_, err := o.TokenPrice(context.Background(), "mint1")
	assert.Error(t, err)
}

func TestTokenInfoPicksDeepestPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{
				{
					"baseToken": map[string]string{"symbol": "SHALLOW", "name": "Shallow Pool"},
					"priceUsd":  "0.9",
					"liquidity": map[string]float64{"usd": 10_000},
					"marketCap": 90_000.0,
				},
				{
					"baseToken": map[string]string{"symbol": "DEEP", "name": "Deep Pool"},
					"priceUsd":  "1.0",
					"liquidity": map[string]float64{"usd": 75_000},
					"marketCap": 100_000.0,
				},
			},
		}))
	}))
	defer srv.Close()

	c := NewInfoClient(srv.URL, zap.NewNop())
	info, err := c.TokenInfo(context.Background(), "mint1")
	require.NoError(t, err)
	assert.Equal(t, "DEEP", info.Symbol)
	assert.InDelta(t, 75_000, info.LiquidityUSD, 1e-9)
	assert.InDelta(t, 100_000, info.MarketCap, 1e-9)
	assert.InDelta(t, 1.0, info.PriceUSD, 1e-9)
}

func TestTokenInfoHandlesNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"pairs": []interface{}{}}))
	}))
	defer srv.Close()

	c := NewInfoClient(srv.URL, zap.NewNop())
	info, err := c.TokenInfo(context.Background(), "mint1")
	require.NoError(t, err)
	assert.Empty(t, info.Symbol)
	assert.Zero(t, info.LiquidityUSD)
}
