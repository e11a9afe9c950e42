// internal/storage/models/stats.go
package models

import "time"

// AggregateStats is the single-row running total updated alongside every
// position close.
type AggregateStats struct {
	ID              uint      `gorm:"primarykey"`
	StartingBalance float64   `gorm:"type:decimal(20,9)"`
	CurrentBalance  float64   `gorm:"type:decimal(20,9)"`
	TotalPnLSOL     float64   `gorm:"type:decimal(20,9)"`
	TotalTrades     int
	WinningTrades   int
	GoalBalance     float64   `gorm:"type:decimal(20,9)"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// PnLPercent derives cumulative P&L relative to the starting balance.
func (s *AggregateStats) PnLPercent() float64 {
	if s.StartingBalance <= 0 {
		return 0
	}
	return (s.CurrentBalance/s.StartingBalance - 1) * 100
}

// GoalProgress derives progress toward the balance goal in percent.
func (s *AggregateStats) GoalProgress() float64 {
	if s.GoalBalance <= 0 {
		return 0
	}
	return s.CurrentBalance / s.GoalBalance * 100
}

// WinRate derives the winning-trade ratio in percent.
func (s *AggregateStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}
