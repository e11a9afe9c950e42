// internal/dex/jupiter.go
package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/metrics"
	"github.com/openclaw/copytrader/internal/wallet"
)

const (
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	DefaultSwapURL  = "https://quote-api.jup.ag/v6/swap"

	// SOLMint is the wrapped native mint routed through on every swap.
	SOLMint = "So11111111111111111111111111111111111111112"

	buySlippageBps  = 150
	sellSlippageBps = 200

	confirmPoll    = 2 * time.Second
	confirmTimeout = 60 * time.Second

	priorityFeeMicroLamports = 100_000
)

// Quote is a priced route returned by the aggregator. The raw response is
// kept verbatim because the swap endpoint consumes it unmodified.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64

	raw json.RawMessage
}

// Swap is the outcome of an executed trade.
type Swap struct {
	Signature    string
	Confirmed    bool
	InputAmount  uint64
	OutputAmount uint64
	PriceImpact  float64
}

// Client routes swaps through the Jupiter aggregator and confirms them
// against the chain.
type Client struct {
	httpClient *http.Client
	rpcClient  *rpc.Client
	wallet     *wallet.Wallet
	quoteURL   string
	swapURL    string
	logger     *zap.Logger
}

func NewClient(quoteURL, swapURL string, rpcClient *rpc.Client, w *wallet.Wallet, logger *zap.Logger) *Client {
	if quoteURL == "" {
		quoteURL = DefaultQuoteURL
	}
	if swapURL == "" {
		swapURL = DefaultSwapURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		rpcClient:  rpcClient,
		wallet:     w,
		quoteURL:   quoteURL,
		swapURL:    swapURL,
		logger:     logger.Named("dex"),
	}
}

// Quote fetches the best route for swapping amount of inputMint into
// outputMint at the given slippage tolerance.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	endpoint := fmt.Sprintf("%s?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		c.quoteURL, inputMint, outputMint, amount, slippageBps)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.APIRequests.WithLabelValues("jupiter", "error").Inc()
		return nil, fmt.Errorf("quote API error %d", resp.StatusCode)
	}
	metrics.APIRequests.WithLabelValues("jupiter", "ok").Inc()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}

	var body struct {
		InputMint      string `json:"inputMint"`
		OutputMint     string `json:"outputMint"`
		InAmount       string `json:"inAmount"`
		OutAmount      string `json:"outAmount"`
		PriceImpactPct string `json:"priceImpactPct"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}

	inAmount, _ := strconv.ParseUint(body.InAmount, 10, 64)
	outAmount, err := strconv.ParseUint(body.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("quote outAmount %q: %w", body.OutAmount, err)
	}
	impact, _ := strconv.ParseFloat(body.PriceImpactPct, 64)

	return &Quote{
		InputMint:      body.InputMint,
		OutputMint:     body.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		raw:            raw,
	}, nil
}

// Execute builds, signs, submits and confirms the swap for a quote.
// A non-nil Swap with Confirmed false means the transaction was submitted
// but its status never settled inside the confirmation window.
func (c *Client) Execute(ctx context.Context, q *Quote) (*Swap, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"quoteResponse":                 q.raw,
		"userPublicKey":                 c.wallet.PublicKey.String(),
		"wrapAndUnwrapSol":              true,
		"dynamicComputeUnitLimit":       true,
		"computeUnitPriceMicroLamports": priorityFeeMicroLamports,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap API error %d", resp.StatusCode)
	}

	var body struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode swap: %w", err)
	}

	tx, err := solana.TransactionFromBase64(body.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("deserialize transaction: %w", err)
	}
	if err := c.wallet.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	maxRetries := uint(3)
	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.Info("📤 Swap submitted",
		zap.String("signature", sig.String()),
		zap.String("input", q.InputMint),
		zap.String("output", q.OutputMint))

	confirmed, err := c.confirm(ctx, sig)
	if err != nil {
		return nil, err
	}

	return &Swap{
		Signature:    sig.String(),
		Confirmed:    confirmed,
		InputAmount:  q.InAmount,
		OutputAmount: q.OutAmount,
		PriceImpact:  q.PriceImpactPct,
	}, nil
}

// confirm polls signature status until it settles or the window expires.
// An on-chain failure is an error; an expired window is (false, nil).
func (c *Client) confirm(ctx context.Context, sig solana.Signature) (bool, error) {
	deadline := time.Now().Add(confirmTimeout)
	ticker := time.NewTicker(confirmPoll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		out, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.logger.Debug("Status poll failed", zap.Error(err))
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]
		if status.Err != nil {
			return false, fmt.Errorf("transaction %s failed on-chain: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return true, nil
		}
	}

	c.logger.Warn("⚠️ Confirmation window expired", zap.String("signature", sig.String()))
	return false, nil
}

// Buy swaps solAmount of native SOL into the token.
func (c *Client) Buy(ctx context.Context, mint string, solAmount float64) (*Swap, error) {
	lamports := uint64(solAmount * 1e9)
	if lamports == 0 {
		return nil, fmt.Errorf("buy amount too small: %f SOL", solAmount)
	}

	q, err := c.Quote(ctx, SOLMint, mint, lamports, buySlippageBps)
	if err != nil {
		return nil, fmt.Errorf("buy quote: %w", err)
	}
	if q.OutAmount == 0 {
		return nil, fmt.Errorf("no route for %s", mint)
	}
	return c.Execute(ctx, q)
}

// SellPercent swaps the given percentage of the held token balance back
// into native SOL.
func (c *Client) SellPercent(ctx context.Context, mint string, percent float64) (*Swap, error) {
	if percent <= 0 || percent > 100 {
		return nil, fmt.Errorf("invalid sell percent: %f", percent)
	}

	balance, err := c.TokenBalance(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	amount := uint64(float64(balance) * percent / 100)
	if amount == 0 {
		return nil, fmt.Errorf("nothing to sell for %s", mint)
	}

	q, err := c.Quote(ctx, mint, SOLMint, amount, sellSlippageBps)
	if err != nil {
		return nil, fmt.Errorf("sell quote: %w", err)
	}
	return c.Execute(ctx, q)
}

// TokenBalance returns the raw token amount held in the wallet's
// associated token account.
func (c *Client) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %s: %w", mint, err)
	}
	ata, err := c.wallet.GetATA(mintKey)
	if err != nil {
		return 0, fmt.Errorf("derive token account: %w", err)
	}

	out, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// TokenDecimals returns the mint's decimal places. Unlike the balance
// lookups it does not need the token account to exist yet.
func (c *Client) TokenDecimals(ctx context.Context, mint string) (uint8, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %s: %w", mint, err)
	}
	out, err := c.rpcClient.GetTokenSupply(ctx, mintKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token supply: %w", err)
	}
	return out.Value.Decimals, nil
}

// TokenBalanceUI returns the decimals-adjusted token balance, matching the
// units used by price feeds.
func (c *Client) TokenBalanceUI(ctx context.Context, mint string) (float64, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %s: %w", mint, err)
	}
	ata, err := c.wallet.GetATA(mintKey)
	if err != nil {
		return 0, fmt.Errorf("derive token account: %w", err)
	}

	out, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	amount, err := strconv.ParseFloat(out.Value.UiAmountString, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.UiAmountString, err)
	}
	return amount, nil
}
