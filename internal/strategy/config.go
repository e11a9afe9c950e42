// internal/strategy/config.go
package strategy

import (
	"errors"
	"time"
)

// Config is the flat set of strategy thresholds. All values can be changed
// at runtime through Strategy.Configure without a restart.
type Config struct {
	// Position sizing
	PositionSizePercent float64 `mapstructure:"position_size_percent"`
	MaxPositions        int     `mapstructure:"max_positions"`

	// Entry filters
	MinLiquidityUSD    float64 `mapstructure:"min_liquidity_usd"`
	MinEfficiencyScore float64 `mapstructure:"min_efficiency_score"`
	MinRecentWinRate   float64 `mapstructure:"min_recent_win_rate"`

	// Stop loss (negative percent)
	StopLossPercent float64 `mapstructure:"stop_loss_percent"`

	// Take profit levels
	TP1Percent     float64 `mapstructure:"tp1_percent"`
	TP1SellPercent float64 `mapstructure:"tp1_sell_percent"`
	TP2Percent     float64 `mapstructure:"tp2_percent"`
	TP2SellPercent float64 `mapstructure:"tp2_sell_percent"`

	// Runner management after TP2
	MomentumThreshold   float64       `mapstructure:"momentum_threshold"`
	StagnationWindow    time.Duration `mapstructure:"stagnation_window"`
	StagnationThreshold float64       `mapstructure:"stagnation_threshold"`
}

// Validate rejects configs that would make the exit ladder unreachable
// or size positions outside (0, 100].
func (c Config) Validate() error {
	if c.PositionSizePercent <= 0 || c.PositionSizePercent > 100 {
		return errors.New("invalid strategy.position_size_percent")
	}
	if c.MaxPositions <= 0 {
		return errors.New("invalid strategy.max_positions")
	}
	if c.StopLossPercent >= 0 {
		return errors.New("strategy.stop_loss_percent must be negative")
	}
	if c.TP1Percent <= 0 || c.TP2Percent <= c.TP1Percent {
		return errors.New("take profit levels must satisfy 0 < tp1 < tp2")
	}
	if c.TP1SellPercent <= 0 || c.TP1SellPercent > 100 ||
		c.TP2SellPercent <= 0 || c.TP2SellPercent > 100 {
		return errors.New("take profit sell percents must be in (0, 100]")
	}
	if c.StagnationWindow <= 0 {
		return errors.New("invalid strategy.stagnation_window")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		PositionSizePercent: 70.0,
		MaxPositions:        3,
		MinLiquidityUSD:     50_000,
		MinEfficiencyScore:  1000,
		MinRecentWinRate:    0.60,
		StopLossPercent:     -20.0,
		TP1Percent:          50.0,
		TP1SellPercent:      50.0,
		TP2Percent:          100.0,
		TP2SellPercent:      50.0,
		MomentumThreshold:   120.0,
		StagnationWindow:    10 * time.Minute,
		StagnationThreshold: 2.0,
	}
}
