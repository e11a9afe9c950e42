// internal/strategy/strategy.go
package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/openclaw/copytrader/internal/storage/models"
)

// ExitAction is the verdict of one exit evaluation tick.
type ExitAction string

const (
	ExitHold         ExitAction = "hold"
	ExitStopLoss     ExitAction = "stop_loss"
	ExitTakeProfit1  ExitAction = "take_profit_1"
	ExitTakeProfit2  ExitAction = "take_profit_2"
	ExitStagnation   ExitAction = "stagnation"
	ExitMomentumHold ExitAction = "momentum_hold"
)

// Sells reports whether the action instructs a sell.
func (a ExitAction) Sells() bool {
	return a == ExitStopLoss || a == ExitTakeProfit1 || a == ExitTakeProfit2 || a == ExitStagnation
}

type pricePoint struct {
	at    time.Time
	price float64
}

// priceHistoryRetention bounds the rolling per-token history used for
// stagnation detection.
const priceHistoryRetention = 30 * time.Minute

// minStagnationSamples is the minimum number of price points inside the
// stagnation window before stagnation can be declared.
const minStagnationSamples = 3

// Strategy owns entry admission, position sizing and the exit state machine.
type Strategy struct {
	mu      sync.RWMutex
	cfg     Config
	history map[string][]pricePoint

	now func() time.Time
}

func New(cfg Config) *Strategy {
	return &Strategy{
		cfg:     cfg,
		history: make(map[string][]pricePoint),
		now:     time.Now,
	}
}

// Config returns a snapshot of the current thresholds.
func (s *Strategy) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Configure mutates the thresholds under lock. Safe to call while the
// engine is running.
func (s *Strategy) Configure(mutate func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.cfg)
}

// ShouldEnter applies the entry admission rules to a signal. The returned
// reason is human-readable and logged on rejection.
func (s *Strategy) ShouldEnter(sig *models.Signal, openCount int, alreadyHolds bool) (bool, string) {
	cfg := s.Config()

	if openCount >= cfg.MaxPositions {
		return false, fmt.Sprintf("max positions reached (%d)", cfg.MaxPositions)
	}
	if alreadyHolds {
		return false, "already holding this token"
	}
	if sig.WalletScore < cfg.MinEfficiencyScore {
		return false, fmt.Sprintf("efficiency score %.0f below threshold %.0f", sig.WalletScore, cfg.MinEfficiencyScore)
	}
	if sig.WalletWinRate < cfg.MinRecentWinRate {
		return false, fmt.Sprintf("win rate %.0f%% below %.0f%%", sig.WalletWinRate*100, cfg.MinRecentWinRate*100)
	}
	if sig.TokenLiquidity < cfg.MinLiquidityUSD {
		return false, fmt.Sprintf("liquidity $%.0f below $%.0f", sig.TokenLiquidity, cfg.MinLiquidityUSD)
	}

	return true, "all criteria met"
}

// PositionSize returns the SOL amount to commit for a new position.
func (s *Strategy) PositionSize(currentBalance float64) float64 {
	cfg := s.Config()
	return currentBalance * cfg.PositionSizePercent / 100
}

// CheckExit evaluates the exit state machine for a position and returns the
// action plus the percent of the remaining position to sell. The stop loss is
// always evaluated first; TP2 cannot fire before TP1.
func (s *Strategy) CheckExit(p *models.Position) (ExitAction, float64) {
	cfg := s.Config()
	pnl := p.PnLPercent

	if pnl <= cfg.StopLossPercent {
		return ExitStopLoss, 100
	}

	if pnl >= cfg.TP1Percent && !p.TP1Hit {
		return ExitTakeProfit1, cfg.TP1SellPercent
	}

	if pnl >= cfg.TP2Percent && p.TP1Hit && !p.TP2Hit {
		return ExitTakeProfit2, cfg.TP2SellPercent
	}

	if p.TP2Hit {
		if pnl >= cfg.MomentumThreshold {
			return ExitMomentumHold, 0
		}
		if s.isStagnant(p.TokenMint, cfg) {
			return ExitStagnation, 100
		}
	}

	return ExitHold, 0
}

// RecordPrice appends a price sample for stagnation detection. History older
// than the retention horizon is discarded.
func (s *Strategy) RecordPrice(tokenMint string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	points := append(s.history[tokenMint], pricePoint{at: now, price: price})

	cutoff := now.Add(-priceHistoryRetention)
	for len(points) > 0 && points[0].at.Before(cutoff) {
		points = points[1:]
	}
	s.history[tokenMint] = points
}

// ForgetToken drops the retained price history for a token. Called when its
// position fully closes.
func (s *Strategy) ForgetToken(tokenMint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, tokenMint)
}

func (s *Strategy) isStagnant(tokenMint string, cfg Config) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[tokenMint]
	if len(points) < 2 {
		return false
	}

	cutoff := s.now().Add(-cfg.StagnationWindow)
	minPrice, maxPrice := 0.0, 0.0
	samples := 0
	for _, pt := range points {
		if pt.at.Before(cutoff) {
			continue
		}
		if samples == 0 || pt.price < minPrice {
			minPrice = pt.price
		}
		if samples == 0 || pt.price > maxPrice {
			maxPrice = pt.price
		}
		samples++
	}

	if samples < minStagnationSamples || minPrice <= 0 {
		return false
	}

	rangePct := (maxPrice - minPrice) / minPrice * 100
	return rangePct < cfg.StagnationThreshold
}
