// internal/strategy/strategy_test.go
package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/copytrader/internal/storage/models"
)

func goodSignal() *models.Signal {
	return &models.Signal{
		TokenMint:      "MintAAAA",
		WalletScore:    2000,
		WalletWinRate:  0.70,
		TokenLiquidity: 100_000,
	}
}

func TestShouldEnter(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(sig *models.Signal)
		openCount    int
		alreadyHolds bool
		want         bool
	}{
		{name: "all criteria met", mutate: func(*models.Signal) {}, want: true},
		{name: "max positions reached", mutate: func(*models.Signal) {}, openCount: 3, want: false},
		{name: "already holding token", mutate: func(*models.Signal) {}, alreadyHolds: true, want: false},
		{name: "low efficiency score", mutate: func(s *models.Signal) { s.WalletScore = 500 }, want: false},
		{name: "low win rate", mutate: func(s *models.Signal) { s.WalletWinRate = 0.40 }, want: false},
		{name: "thin liquidity", mutate: func(s *models.Signal) { s.TokenLiquidity = 10_000 }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			sig := goodSignal()
			tt.mutate(sig)

			got, reason := s.ShouldEnter(sig, tt.openCount, tt.alreadyHolds)
			assert.Equal(t, tt.want, got, reason)
		})
	}
}

func TestPositionSize(t *testing.T) {
	s := New(DefaultConfig())
	assert.InDelta(t, 7.0, s.PositionSize(10), 1e-9)

	s.Configure(func(c *Config) { c.PositionSizePercent = 50 })
	assert.InDelta(t, 5.0, s.PositionSize(10), 1e-9)
}

func TestCheckExitLadder(t *testing.T) {
	tests := []struct {
		name       string
		pnl        float64
		tp1Hit     bool
		tp2Hit     bool
		wantAction ExitAction
		wantSell   float64
	}{
		{name: "deep loss stops", pnl: -25, wantAction: ExitStopLoss, wantSell: 100},
		{name: "stop at exact threshold", pnl: -20, wantAction: ExitStopLoss, wantSell: 100},
		{name: "small loss holds", pnl: -10, wantAction: ExitHold},
		{name: "tp1 at threshold", pnl: 50, wantAction: ExitTakeProfit1, wantSell: 50},
		{name: "tp1 already taken holds", pnl: 60, tp1Hit: true, wantAction: ExitHold},
		{name: "tp2 requires tp1 first", pnl: 120, wantAction: ExitTakeProfit1, wantSell: 50},
		{name: "tp2 after tp1", pnl: 110, tp1Hit: true, wantAction: ExitTakeProfit2, wantSell: 50},
		{name: "momentum hold after tp2", pnl: 150, tp1Hit: true, tp2Hit: true, wantAction: ExitMomentumHold},
		{name: "runner below momentum holds", pnl: 110, tp1Hit: true, tp2Hit: true, wantAction: ExitHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			p := &models.Position{
				TokenMint:  "MintAAAA",
				PnLPercent: tt.pnl,
				TP1Hit:     tt.tp1Hit,
				TP2Hit:     tt.tp2Hit,
			}
			action, sell := s.CheckExit(p)
			assert.Equal(t, tt.wantAction, action)
			assert.InDelta(t, tt.wantSell, sell, 1e-9)
		})
	}
}

func TestStopLossBeatsTakeProfit(t *testing.T) {
	s := New(DefaultConfig())
	s.Configure(func(c *Config) { c.StopLossPercent = -5 })

	// A runner that collapsed below the stop must stop, whatever flags say.
	p := &models.Position{TokenMint: "MintAAAA", PnLPercent: -6, TP1Hit: true, TP2Hit: true}
	action, sell := s.CheckExit(p)
	assert.Equal(t, ExitStopLoss, action)
	assert.InDelta(t, 100.0, sell, 1e-9)
}

func TestStagnationExit(t *testing.T) {
	s := New(DefaultConfig())
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	// Flat prices spread over nine minutes, well inside the window.
	for i := 0; i < 4; i++ {
		s.RecordPrice("MintAAAA", 1.0+float64(i)*0.001)
		current = current.Add(3 * time.Minute)
	}

	p := &models.Position{TokenMint: "MintAAAA", PnLPercent: 110, TP1Hit: true, TP2Hit: true}
	action, sell := s.CheckExit(p)
	assert.Equal(t, ExitStagnation, action)
	assert.InDelta(t, 100.0, sell, 1e-9)
}

func TestStagnationNeedsEnoughSamples(t *testing.T) {
	s := New(DefaultConfig())
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	s.RecordPrice("MintAAAA", 1.0)
	current = current.Add(time.Minute)
	s.RecordPrice("MintAAAA", 1.001)
	current = current.Add(time.Minute)

	p := &models.Position{TokenMint: "MintAAAA", PnLPercent: 110, TP1Hit: true, TP2Hit: true}
	action, _ := s.CheckExit(p)
	assert.Equal(t, ExitHold, action)
}

func TestStagnationIgnoresMovingPrice(t *testing.T) {
	s := New(DefaultConfig())
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	for _, price := range []float64{1.0, 1.1, 1.25} {
		s.RecordPrice("MintAAAA", price)
		current = current.Add(2 * time.Minute)
	}

	p := &models.Position{TokenMint: "MintAAAA", PnLPercent: 110, TP1Hit: true, TP2Hit: true}
	action, _ := s.CheckExit(p)
	assert.Equal(t, ExitHold, action)
}

func TestForgetTokenClearsHistory(t *testing.T) {
	s := New(DefaultConfig())
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		s.RecordPrice("MintAAAA", 1.0)
		current = current.Add(2 * time.Minute)
	}
	s.ForgetToken("MintAAAA")

	p := &models.Position{TokenMint: "MintAAAA", PnLPercent: 110, TP1Hit: true, TP2Hit: true}
	action, _ := s.CheckExit(p)
	assert.Equal(t, ExitHold, action)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.StopLossPercent = 5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.TP2Percent = bad.TP1Percent
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.PositionSizePercent = 0
	assert.Error(t, bad.Validate())
}
