// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/models"
)

// Store is an in-memory Storage implementation. Used in tests and dry runs;
// it keeps the same queue semantics as the Postgres store but survives
// nothing.
type Store struct {
	mu        sync.Mutex
	signals   []*models.Signal
	positions map[string]*models.Position
	stats     *models.AggregateStats
}

func New() *Store {
	return &Store{positions: make(map[string]*models.Position)}
}

func (s *Store) Signals() storage.SignalRepository { return (*signalRepo)(s) }

func (s *Store) Positions() storage.PositionRepository { return (*positionRepo)(s) }

func (s *Store) Migrate() error { return nil }

func (s *Store) Close() error { return nil }

type signalRepo Store

func (r *signalRepo) Push(_ context.Context, sig *models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *sig
	r.signals = append(r.signals, &cp)
	return nil
}

func (r *signalRepo) PopPending(_ context.Context) (*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.signals, func(i, j int) bool {
		return r.signals[i].CreatedAt.Before(r.signals[j].CreatedAt)
	})
	for _, sig := range r.signals {
		if sig.Status == models.SignalPending {
			sig.Status = models.SignalProcessing
			cp := *sig
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *signalRepo) Complete(_ context.Context, id string, outcome models.SignalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sig := range r.signals {
		if sig.ID == id {
			now := time.Now().UTC()
			sig.Status = outcome
			sig.ProcessedAt = &now
			return nil
		}
	}
	return storage.ErrNotFound
}

func (r *signalRepo) PendingCount(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, sig := range r.signals {
		if sig.Status == models.SignalPending {
			count++
		}
	}
	return count, nil
}

type positionRepo Store

func (r *positionRepo) SavePosition(_ context.Context, p *models.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	cp.ExitSignatures = append([]string(nil), p.ExitSignatures...)
	r.positions[p.ID] = &cp
	return nil
}

func (r *positionRepo) ActivePositions(_ context.Context) ([]*models.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*models.Position
	for _, p := range r.positions {
		if p.Status.Active() {
			cp := *p
			cp.ExitSignatures = append([]string(nil), p.ExitSignatures...)
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].EntryTime.Before(active[j].EntryTime)
	})
	return active, nil
}

func (r *positionRepo) LoadStats(_ context.Context) (*models.AggregateStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stats == nil {
		return nil, storage.ErrNotFound
	}
	cp := *r.stats
	return &cp, nil
}

func (r *positionRepo) SaveStats(_ context.Context, stats *models.AggregateStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *stats
	r.stats = &cp
	return nil
}
