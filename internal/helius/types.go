// internal/helius/types.go
package helius

import "time"

// Transaction is one enhanced transaction as returned by the wallet history
// endpoint. Only the fields the monitor needs are decoded; unknown fields are
// dropped at the boundary.
type Transaction struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"`
	FeePayer        string           `json:"feePayer"`
	Source          string           `json:"source"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
}

type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"`
}

type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// Side classifies a swap relative to the tracked wallet.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SwapEvent is a classified buy or sell of a non-excluded token.
type SwapEvent struct {
	Signature   string
	Wallet      string
	TokenMint   string
	Side        Side
	TokenAmount float64
	SOLAmount   float64
	Timestamp   time.Time
}

// TokenPnL aggregates a wallet's recent activity in one token, used for the
// recent-trade quality gate. A position is closed when it has both buys and
// sells.
type TokenPnL struct {
	TokenMint    string
	SOLSpent     float64
	SOLEarned    float64
	LastActivity time.Time
}

// Closed reports whether the token position has a paired buy and sell.
func (t TokenPnL) Closed() bool {
	return t.SOLSpent > 0 && t.SOLEarned > 0
}

// PnLPercent is realized P&L for a closed token position.
func (t TokenPnL) PnLPercent() float64 {
	if t.SOLSpent <= 0 {
		return 0
	}
	return (t.SOLEarned - t.SOLSpent) / t.SOLSpent * 100
}
