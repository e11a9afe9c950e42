// internal/pricing/oracle.go
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	DefaultPriceURL = "https://price.jup.ag/v6/price"

	// SOLMint is the wrapped native mint used for reference pricing.
	SOLMint = "So11111111111111111111111111111111111111112"

	solPriceTTL   = 30 * time.Second
	tokenPriceTTL = 3 * time.Second
)

type cacheEntry struct {
	price   float64
	fetched time.Time
}

// Oracle serves current token prices and wallet balances with a short-lived
// cache. On fetch failure the last cached value is returned when present.
type Oracle struct {
	httpClient *http.Client
	rpcClient  *rpc.Client
	priceURL   string
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

func NewOracle(priceURL string, rpcClient *rpc.Client, logger *zap.Logger) *Oracle {
	if priceURL == "" {
		priceURL = DefaultPriceURL
	}
	return &Oracle{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		rpcClient:  rpcClient,
		priceURL:   priceURL,
		logger:     logger.Named("oracle"),
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// TokenPrice returns the token's USD price.
func (o *Oracle) TokenPrice(ctx context.Context, mint string) (float64, error) {
	return o.price(ctx, mint, tokenPriceTTL)
}

// SOLPrice returns the native asset's USD price, cached longer since it
// moves slowly relative to the tokens being traded.
func (o *Oracle) SOLPrice(ctx context.Context) (float64, error) {
	return o.price(ctx, SOLMint, solPriceTTL)
}

func (o *Oracle) price(ctx context.Context, mint string, ttl time.Duration) (float64, error) {
	o.mu.Lock()
	entry, ok := o.cache[mint]
	o.mu.Unlock()

	if ok && o.now().Sub(entry.fetched) < ttl {
		return entry.price, nil
	}

	price, err := o.fetchPrice(ctx, mint)
	if err != nil {
		if ok && entry.price > 0 {
			o.logger.Debug("Price fetch failed, serving cached value",
				zap.String("mint", mint), zap.Error(err))
			return entry.price, nil
		}
		return 0, err
	}

	o.mu.Lock()
	o.cache[mint] = cacheEntry{price: price, fetched: o.now()}
	o.mu.Unlock()

	return price, nil
}

func (o *Oracle) fetchPrice(ctx context.Context, mint string) (float64, error) {
	endpoint := fmt.Sprintf("%s?ids=%s", o.priceURL, url.QueryEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API error %d", resp.StatusCode)
	}

	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}

	entry, ok := body.Data[mint]
	if !ok || entry.Price <= 0 {
		return 0, fmt.Errorf("no price for %s", mint)
	}
	return entry.Price, nil
}

// WalletBalance returns the native balance of a wallet in SOL.
func (o *Oracle) WalletBalance(ctx context.Context, pubkey solana.PublicKey) (float64, error) {
	out, err := o.rpcClient.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(out.Value) / 1e9, nil
}
