// internal/watch/quality.go
package watch

import "github.com/openclaw/copytrader/internal/helius"

const minClosedForGate = 3

// recentTradeWindow caps how many closed trades the form gate looks at.
// Older results say nothing about a wallet's current form.
const recentTradeWindow = 5

// RecentPerformance summarizes a wallet's recently closed trades.
type RecentPerformance struct {
	ClosedTrades  int
	WinningTrades int
	WinRate       float64
}

// Summarize folds per-token P&L into a performance summary. Only tokens
// with both buy and sell legs count as closed trades, and only the most
// recent ones are considered; pnls must be ordered newest first, as
// TradePerformance returns them.
func Summarize(pnls []helius.TokenPnL) RecentPerformance {
	var perf RecentPerformance
	for _, p := range pnls {
		if !p.Closed() {
			continue
		}
		perf.ClosedTrades++
		if p.PnLPercent() > 0 {
			perf.WinningTrades++
		}
		if perf.ClosedTrades == recentTradeWindow {
			break
		}
	}
	if perf.ClosedTrades > 0 {
		perf.WinRate = float64(perf.WinningTrades) / float64(perf.ClosedTrades)
	}
	return perf
}

// PassesGate reports whether a wallet's recent form is good enough to
// copy. Wallets with too few closed trades pass: absence of evidence is
// not treated as poor form.
func (p RecentPerformance) PassesGate(minWinRate float64) bool {
	if p.ClosedTrades < minClosedForGate {
		return true
	}
	return p.WinRate >= minWinRate
}
