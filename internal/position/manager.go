// internal/position/manager.go
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/models"
	"go.uber.org/zap"
)

// closeEpsilon: a position whose remaining percent falls at or below this is
// treated as fully closed (dust from rounding is not worth another swap).
const closeEpsilon = 0.5

var (
	ErrMaxPositions   = errors.New("max concurrent positions reached")
	ErrAlreadyHolding = errors.New("already holding a position for this token")
	ErrNotFound       = errors.New("no position for this token")
)

// CloseReason tags a partial or full close with what triggered it.
type CloseReason string

const (
	ReasonTP1        CloseReason = "tp1"
	ReasonTP2        CloseReason = "tp2"
	ReasonStop       CloseReason = "stop"
	ReasonStagnation CloseReason = "stagnation"
	ReasonManual     CloseReason = "manual"
)

// OpenParams carries everything needed to open a position.
type OpenParams struct {
	TokenMint      string
	TokenSymbol    string
	EntryPrice     float64
	EntrySOL       float64
	TokenAmount    float64
	SourceWallet   string
	EntrySignature string
}

// CloseResult reports the outcome of a partial close.
type CloseResult struct {
	Position    *models.Position
	RealizedPnL float64
	// SoldPercent is the percent of the original position this close removed.
	SoldPercent float64
	// Applied is false when the exit signature had already been processed
	// (idempotent replay).
	Applied bool
}

// Stats is AggregateStats plus its derived fields.
type Stats struct {
	StartingBalance float64
	CurrentBalance  float64
	TotalPnLSOL     float64
	TotalPnLPercent float64
	GoalBalance     float64
	GoalProgress    float64
	TotalTrades     int
	WinningTrades   int
	WinRate         float64
	OpenPositions   int
}

// Manager is the authoritative owner of position lifecycle and arithmetic.
// All mutations go through the repository so state survives restarts.
type Manager struct {
	mu           sync.Mutex
	repo         storage.PositionRepository
	logger       *zap.Logger
	maxPositions int

	positions map[string]*models.Position // token mint -> active position
	stats     *models.AggregateStats
}

// NewManager loads active positions and the stats row; a missing stats row is
// initialized from the configured starting balance and goal.
func NewManager(ctx context.Context, repo storage.PositionRepository, maxPositions int, startingBalance, goalBalance float64, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		repo:         repo,
		logger:       logger.Named("positions"),
		maxPositions: maxPositions,
		positions:    make(map[string]*models.Position),
	}

	active, err := repo.ActivePositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active positions: %w", err)
	}
	for _, p := range active {
		m.positions[p.TokenMint] = p
	}

	stats, err := repo.LoadStats(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		stats = &models.AggregateStats{
			ID:              1,
			StartingBalance: startingBalance,
			CurrentBalance:  startingBalance,
			GoalBalance:     goalBalance,
		}
		if err := repo.SaveStats(ctx, stats); err != nil {
			return nil, fmt.Errorf("initialize stats: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load stats: %w", err)
	}
	m.stats = stats

	m.logger.Info("📂 Position manager ready",
		zap.Int("active_positions", len(m.positions)),
		zap.Float64("balance", stats.CurrentBalance))

	return m, nil
}

// Open creates a new position with 100% remaining. It rejects when the
// concurrency limit is reached or a non-closed position exists for the token.
func (m *Manager) Open(ctx context.Context, params OpenParams) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positions) >= m.maxPositions {
		return nil, ErrMaxPositions
	}
	if _, ok := m.positions[params.TokenMint]; ok {
		return nil, ErrAlreadyHolding
	}

	now := time.Now().UTC()
	p := &models.Position{
		ID:               uuid.New().String(),
		TokenMint:        params.TokenMint,
		TokenSymbol:      params.TokenSymbol,
		EntryPrice:       params.EntryPrice,
		EntrySOL:         params.EntrySOL,
		TokenAmount:      params.TokenAmount,
		CurrentPrice:     params.EntryPrice,
		CurrentValueSOL:  params.EntrySOL,
		Status:           models.PositionOpen,
		RemainingPercent: 100,
		SourceWallet:     params.SourceWallet,
		EntrySignature:   params.EntrySignature,
		EntryTime:        now,
		LastUpdate:       now,
	}

	if err := m.repo.SavePosition(ctx, p); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}
	m.positions[params.TokenMint] = p

	m.logger.Info("🟢 Position opened",
		zap.String("token", params.TokenSymbol),
		zap.Float64("entry_sol", params.EntrySOL),
		zap.Float64("tokens", params.TokenAmount),
		zap.String("source_wallet", params.SourceWallet))

	return m.snapshot(p), nil
}

// UpdatePrice recomputes the cached P&L fields from the current token price
// and the reference SOL price. Pure recomputation, no state transitions.
func (m *Manager) UpdatePrice(ctx context.Context, tokenMint string, price, solPrice float64) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[tokenMint]
	if !ok {
		return nil, ErrNotFound
	}

	p.CurrentPrice = price
	p.LastUpdate = time.Now().UTC()

	if p.EntryPrice > 0 {
		p.PnLPercent = (price/p.EntryPrice - 1) * 100
	}

	remainingTokens := p.TokenAmount * p.RemainingPercent / 100
	if solPrice > 0 {
		p.CurrentValueSOL = remainingTokens * price / solPrice
	} else {
		p.CurrentValueSOL = 0
	}
	entryRemaining := p.EntrySOL * p.RemainingPercent / 100
	p.PnLSOL = p.CurrentValueSOL - entryRemaining

	if err := m.repo.SavePosition(ctx, p); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}
	return m.snapshot(p), nil
}

// PartialClose sells closePercent of the REMAINING position. proceeds is the
// SOL received for the slice. Replaying the same exit signature is a no-op.
// confirmed=false records the exit provisionally and flags it for
// reconciliation instead of trusting the proceeds.
func (m *Manager) PartialClose(ctx context.Context, tokenMint string, closePercent, proceeds float64, exitSignature string, reason CloseReason, confirmed bool) (*CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[tokenMint]
	if !ok {
		return nil, ErrNotFound
	}

	if exitSignature != "" && p.HasExit(exitSignature) {
		m.logger.Warn("Duplicate exit signature ignored",
			zap.String("token", p.TokenSymbol),
			zap.String("signature", exitSignature))
		return &CloseResult{Position: m.snapshot(p), Applied: false}, nil
	}

	selling := p.RemainingPercent * closePercent / 100
	p.RemainingPercent -= selling
	p.ExitSignatures = append(p.ExitSignatures, exitSignature)
	p.LastUpdate = time.Now().UTC()

	switch reason {
	case ReasonTP1:
		p.TP1Hit = true
		p.Status = models.PositionPartial
	case ReasonTP2:
		p.TP2Hit = true
	case ReasonStop:
		p.StopHit = true
		p.Status = models.PositionStopped
	}

	if p.RemainingPercent <= closeEpsilon {
		p.RemainingPercent = 0
		if p.Status != models.PositionStopped {
			p.Status = models.PositionClosed
		}
	}

	// Realized P&L for the slice: proceeds minus the proportional entry cost.
	entryPortion := p.EntrySOL * selling / 100
	realized := proceeds - entryPortion

	if err := m.repo.SavePosition(ctx, p); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}

	m.stats.TotalPnLSOL += realized
	m.stats.CurrentBalance += realized
	m.stats.TotalTrades++
	if realized > 0 {
		m.stats.WinningTrades++
	}
	if err := m.repo.SaveStats(ctx, m.stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	if !p.Status.Active() {
		delete(m.positions, tokenMint)
	}

	if confirmed {
		m.logger.Info("🔴 Partial close",
			zap.String("token", p.TokenSymbol),
			zap.String("reason", string(reason)),
			zap.Float64("closed_percent", closePercent),
			zap.Float64("proceeds_sol", proceeds),
			zap.Float64("realized_pnl", realized),
			zap.Float64("remaining_percent", p.RemainingPercent))
	} else {
		// Proceeds come from the quote, not a confirmed transaction.
		m.logger.Warn("⚠️ Provisional close pending reconciliation",
			zap.String("token", p.TokenSymbol),
			zap.String("reason", string(reason)),
			zap.String("signature", exitSignature),
			zap.Float64("quoted_proceeds_sol", proceeds))
	}

	return &CloseResult{
		Position:    m.snapshot(p),
		RealizedPnL: realized,
		SoldPercent: selling,
		Applied:     true,
	}, nil
}

// Close fully exits a position.
func (m *Manager) Close(ctx context.Context, tokenMint string, proceeds float64, exitSignature string, reason CloseReason, confirmed bool) (*CloseResult, error) {
	return m.PartialClose(ctx, tokenMint, 100, proceeds, exitSignature, reason, confirmed)
}

// Has reports whether a non-closed position exists for the token.
func (m *Manager) Has(tokenMint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[tokenMint]
	return ok
}

// OpenCount returns the number of non-closed positions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// OpenPositions returns snapshots of all non-closed positions.
func (m *Manager) OpenPositions() []*models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, m.snapshot(p))
	}
	return out
}

// SetCurrentBalance overwrites the cached balance from the wallet.
func (m *Manager) SetCurrentBalance(ctx context.Context, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.CurrentBalance = balance
	return m.repo.SaveStats(ctx, m.stats)
}

// Stats returns the aggregate stats with derived fields.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		StartingBalance: m.stats.StartingBalance,
		CurrentBalance:  m.stats.CurrentBalance,
		TotalPnLSOL:     m.stats.TotalPnLSOL,
		TotalPnLPercent: m.stats.PnLPercent(),
		GoalBalance:     m.stats.GoalBalance,
		GoalProgress:    m.stats.GoalProgress(),
		TotalTrades:     m.stats.TotalTrades,
		WinningTrades:   m.stats.WinningTrades,
		WinRate:         m.stats.WinRate(),
		OpenPositions:   len(m.positions),
	}
}

// snapshot copies a position so callers cannot mutate manager state.
func (m *Manager) snapshot(p *models.Position) *models.Position {
	cp := *p
	cp.ExitSignatures = append([]string(nil), p.ExitSignatures...)
	return &cp
}
