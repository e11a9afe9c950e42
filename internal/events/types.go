// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Signal lifecycle
	SignalDetected EventType = "signal.detected"
	SignalSkipped  EventType = "signal.skipped"

	// Trade lifecycle
	TradeOpened EventType = "trade.opened"
	TradeExited EventType = "trade.exited"

	// Account events
	BalanceUpdated EventType = "balance.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// SignalDetectedEvent is emitted when a watched wallet's buy qualifies.
type SignalDetectedEvent struct {
	BaseEvent
	SignalID      string
	TokenMint     string
	TokenSymbol   string
	WalletAddress string
	WalletTier    string
	BuySOL        float64
}

// SignalSkippedEvent is emitted when a signal fails admission.
type SignalSkippedEvent struct {
	BaseEvent
	SignalID  string
	TokenMint string
	Reason    string
}

// TradeOpenedEvent is emitted after a buy is executed and the position
// recorded.
type TradeOpenedEvent struct {
	BaseEvent
	PositionID   string
	TokenMint    string
	TokenSymbol  string
	EntrySOL     float64
	EntryPrice   float64
	TokenAmount  float64
	Signature    string
	SourceWallet string
}

// TradeExitedEvent is emitted after a full or partial close.
type TradeExitedEvent struct {
	BaseEvent
	PositionID  string
	TokenMint   string
	Reason      string
	SoldPercent float64
	RealizedPnL float64
	Signature   string
	Final       bool
}

// BalanceUpdatedEvent is emitted on each balance refresh.
type BalanceUpdatedEvent struct {
	BaseEvent
	BalanceSOL   float64
	GoalProgress float64
}
