// internal/storage/models/position.go
package models

import "time"

// PositionStatus is the lifecycle state of a copy-trade position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionPartial PositionStatus = "partial" // some sold (TP1 hit)
	PositionClosed  PositionStatus = "closed"
	PositionStopped PositionStatus = "stopped" // stop loss hit
)

// Active reports whether the position still holds tokens.
func (s PositionStatus) Active() bool {
	return s == PositionOpen || s == PositionPartial
}

// Position is an open or closed copy-trade. Entry fields are authoritative;
// current price / P&L fields are cached recomputations.
type Position struct {
	ID              string         `gorm:"primarykey;type:varchar(64)"`
	TokenMint       string         `gorm:"index;not null;type:varchar(44)"`
	TokenSymbol     string         `gorm:"type:varchar(32)"`
	EntryPrice      float64        `gorm:"type:decimal(30,18)"`
	EntrySOL        float64        `gorm:"type:decimal(20,9)"`
	TokenAmount     float64        `gorm:"type:decimal(30,9)"`
	CurrentPrice    float64        `gorm:"type:decimal(30,18)"`
	CurrentValueSOL float64        `gorm:"type:decimal(20,9)"`
	PnLPercent      float64        `gorm:"type:decimal(12,4)"`
	PnLSOL          float64        `gorm:"type:decimal(20,9)"`
	Status          PositionStatus `gorm:"index;not null;type:varchar(20)"`
	TP1Hit          bool
	TP2Hit          bool
	StopHit         bool
	// RemainingPercent is the fraction of the original position still held.
	// It only decreases and reaches 0 when the position closes.
	RemainingPercent float64    `gorm:"type:decimal(7,4)"`
	SourceWallet     string     `gorm:"type:varchar(44)"`
	EntrySignature   string     `gorm:"type:varchar(88)"`
	ExitSignatures   []string   `gorm:"serializer:json"`
	EntryTime        time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
	LastUpdate       time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
}

// HasExit reports whether the exit signature was already applied to this
// position. Used to keep partial closes idempotent.
func (p *Position) HasExit(signature string) bool {
	for _, sig := range p.ExitSignatures {
		if sig == signature {
			return true
		}
	}
	return false
}
