// internal/helius/client.go
package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/metrics"
)

const DefaultBaseURL = "https://api.helius.xyz/v0"

// Mints excluded from buy/sell classification: the native asset and the
// major stablecoins are the quote side of a swap, never the traded token.
const (
	WSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

func excludedMint(mint string) bool {
	return mint == WSOLMint || mint == USDCMint || mint == USDTMint
}

// Client talks to the wallet-activity API using the rotated key pool.
type Client struct {
	httpClient *http.Client
	rotator    *KeyRotator
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, rotator *KeyRotator, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rotator:    rotator,
		baseURL:    baseURL,
		logger:     logger.Named("helius"),
	}
}

// Transactions returns the wallet's most recent enhanced transactions,
// newest first. Rate-limit responses rotate to a fresh key; transient
// failures are retried with backoff.
func (c *Client) Transactions(ctx context.Context, wallet string, limit int) ([]Transaction, error) {
	operation := func() ([]Transaction, error) {
		key, err := c.rotator.Get(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		endpoint := fmt.Sprintf("%s/addresses/%s/transactions?api-key=%s&limit=%d",
			c.baseURL, url.PathEscape(wallet), url.QueryEscape(key), limit)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			// Next attempt picks up a different key from the pool.
			return nil, fmt.Errorf("rate limited")
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, backoff.Permanent(fmt.Errorf("history API error %d: %s", resp.StatusCode, body))
		}

		var txs []Transaction
		if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode history: %w", err))
		}
		return txs, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second

	txs, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(3),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("Retrying history fetch",
				zap.String("wallet", wallet), zap.Error(err), zap.Duration("backoff", d))
		}))
	if err != nil {
		metrics.APIRequests.WithLabelValues("helius", "error").Inc()
		return nil, fmt.Errorf("fetch transactions for %s: %w", wallet, err)
	}
	metrics.APIRequests.WithLabelValues("helius", "ok").Inc()
	return txs, nil
}

// Balance returns the wallet's native balance in SOL.
func (c *Client) Balance(ctx context.Context, wallet string) (float64, error) {
	key, err := c.rotator.Get(ctx)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/addresses/%s/balances?api-key=%s",
		c.baseURL, url.PathEscape(wallet), url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance API error %d", resp.StatusCode)
	}

	var body struct {
		NativeBalance json.Number `json:"nativeBalance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}

	lamports, err := body.NativeBalance.Float64()
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", body.NativeBalance, err)
	}
	return lamports / 1e9, nil
}

// ParseSwap classifies a transaction as a buy or sell of a non-excluded
// token by the given wallet. Returns nil when the transaction is not a swap
// involving that wallet.
func ParseSwap(tx Transaction, wallet string) *SwapEvent {
	var main *TokenTransfer
	for i := range tx.TokenTransfers {
		if tx.TokenTransfers[i].Mint != "" && !excludedMint(tx.TokenTransfers[i].Mint) {
			main = &tx.TokenTransfers[i]
			break
		}
	}
	if main == nil {
		return nil
	}

	var side Side
	switch {
	case main.ToUserAccount == wallet:
		side = SideBuy
	case main.FromUserAccount == wallet:
		side = SideSell
	default:
		return nil
	}

	// Native amount: delta of native transfers where the wallet is the
	// sender (buy) or receiver (sell).
	var lamports int64
	for _, nt := range tx.NativeTransfers {
		switch {
		case nt.FromUserAccount == wallet:
			lamports -= nt.Amount
		case nt.ToUserAccount == wallet:
			lamports += nt.Amount
		}
	}
	if lamports < 0 {
		lamports = -lamports
	}

	return &SwapEvent{
		Signature:   tx.Signature,
		Wallet:      wallet,
		TokenMint:   main.Mint,
		Side:        side,
		TokenAmount: main.TokenAmount,
		SOLAmount:   float64(lamports) / 1e9,
		Timestamp:   time.Unix(tx.Timestamp, 0),
	}
}

// TradePerformance folds the wallet's recent history into per-token
// buy/sell aggregates, most recent first. Feeds the recent-win-rate gate.
func (c *Client) TradePerformance(ctx context.Context, wallet string) ([]TokenPnL, error) {
	txs, err := c.Transactions(ctx, wallet, 50)
	if err != nil {
		return nil, err
	}

	byToken := make(map[string]*TokenPnL)
	for _, tx := range txs {
		evt := ParseSwap(tx, wallet)
		if evt == nil {
			continue
		}

		agg, ok := byToken[evt.TokenMint]
		if !ok {
			agg = &TokenPnL{TokenMint: evt.TokenMint}
			byToken[evt.TokenMint] = agg
		}

		if evt.Side == SideBuy {
			agg.SOLSpent += evt.SOLAmount
		} else {
			agg.SOLEarned += evt.SOLAmount
		}
		if evt.Timestamp.After(agg.LastActivity) {
			agg.LastActivity = evt.Timestamp
		}
	}

	trades := make([]TokenPnL, 0, len(byToken))
	for _, agg := range byToken {
		trades = append(trades, *agg)
	}
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].LastActivity.After(trades[j].LastActivity)
	})
	return trades, nil
}
