// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/openclaw/copytrader/internal/storage/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// SignalRepository is the durable FIFO carrying candidate trades from the
// wallet monitor to the strategy consumer. The queue does not serialize
// concurrent pops; the engine runs a single consumer.
type SignalRepository interface {
	// Push appends a new signal as pending.
	Push(ctx context.Context, sig *models.Signal) error
	// PopPending atomically selects the oldest pending signal, marks it
	// processing and returns it. An empty queue yields (nil, nil).
	PopPending(ctx context.Context) (*models.Signal, error)
	// Complete sets the terminal state for a signal.
	Complete(ctx context.Context, id string, outcome models.SignalStatus) error
	// PendingCount returns the number of signals waiting to be processed.
	PendingCount(ctx context.Context) (int64, error)
}

// PositionRepository persists positions and the aggregate stats row.
type PositionRepository interface {
	SavePosition(ctx context.Context, p *models.Position) error
	// ActivePositions returns all non-terminal positions (reloaded on restart).
	ActivePositions(ctx context.Context) ([]*models.Position, error)
	LoadStats(ctx context.Context) (*models.AggregateStats, error)
	SaveStats(ctx context.Context, s *models.AggregateStats) error
}

// Storage bundles the repositories backed by one store.
type Storage interface {
	Signals() SignalRepository
	Positions() PositionRepository
	// Migrate brings the schema up to date.
	Migrate() error
	Close() error
}
