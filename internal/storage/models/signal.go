// internal/storage/models/signal.go
package models

import "time"

// SignalStatus is the lifecycle state of a queued trade signal.
type SignalStatus string

const (
	SignalPending    SignalStatus = "pending"
	SignalProcessing SignalStatus = "processing"
	SignalExecuted   SignalStatus = "executed"
	SignalSkipped    SignalStatus = "skipped"
	SignalFailed     SignalStatus = "failed"
)

// Signal is a candidate copy-trade extracted from tracked wallet activity.
// Signals are never deleted; terminal rows form the audit trail.
type Signal struct {
	ID             string       `gorm:"primarykey;type:varchar(36)"`
	TokenMint      string       `gorm:"index;not null;type:varchar(44)"`
	TokenSymbol    string       `gorm:"type:varchar(32)"`
	WalletAddress  string       `gorm:"index;not null;type:varchar(44)"`
	WalletTier     string       `gorm:"type:varchar(20)"`
	WalletScore    float64      `gorm:"type:decimal(20,4)"`
	WalletWinRate  float64      `gorm:"type:decimal(6,4)"`
	BuySOL         float64      `gorm:"type:decimal(20,9)"`
	TokenLiquidity float64      `gorm:"type:decimal(20,2)"`
	TokenMarketCap float64      `gorm:"type:decimal(20,2)"`
	Status         SignalStatus `gorm:"index;not null;type:varchar(20)"`
	CreatedAt      time.Time    `gorm:"index;default:CURRENT_TIMESTAMP"`
	ProcessedAt    *time.Time
}

// Terminal reports whether the signal reached a final state.
func (s SignalStatus) Terminal() bool {
	return s == SignalExecuted || s == SignalSkipped || s == SignalFailed
}
