// internal/pricing/tokeninfo.go
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/tokens"

// TokenInfo is a point-in-time market snapshot for a token.
type TokenInfo struct {
	Symbol       string
	Name         string
	PriceUSD     float64
	LiquidityUSD float64
	MarketCap    float64
}

// InfoClient fetches token market snapshots from DexScreener.
type InfoClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewInfoClient(baseURL string, logger *zap.Logger) *InfoClient {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &InfoClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     logger.Named("tokeninfo"),
	}
}

// TokenInfo returns the snapshot from the deepest liquidity pair. A token
// with no pairs yields a zero-value snapshot, not an error, so callers can
// apply their own liquidity floor.
func (c *InfoClient) TokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token info API error %d", resp.StatusCode)
	}

	var body struct {
		Pairs []struct {
			BaseToken struct {
				Symbol string `json:"symbol"`
				Name   string `json:"name"`
			} `json:"baseToken"`
			PriceUSD  string `json:"priceUsd"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
			MarketCap float64 `json:"marketCap"`
		} `json:"pairs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token info: %w", err)
	}

	info := &TokenInfo{}
	for _, pair := range body.Pairs {
		if pair.Liquidity.USD < info.LiquidityUSD {
			continue
		}
		price, _ := strconv.ParseFloat(pair.PriceUSD, 64)
		info.Symbol = pair.BaseToken.Symbol
		info.Name = pair.BaseToken.Name
		info.PriceUSD = price
		info.LiquidityUSD = pair.Liquidity.USD
		info.MarketCap = pair.MarketCap
	}
	if info.Symbol == "" {
		c.logger.Debug("No pairs listed for token", zap.String("mint", mint))
	}
	return info, nil
}
