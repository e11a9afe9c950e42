// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/models"
)

func pendingSignal(id string, at time.Time) *models.Signal {
	return &models.Signal{
		ID:        id,
		TokenMint: "mint-" + id,
		Status:    models.SignalPending,
		CreatedAt: at,
	}
}

func TestQueueOrderingIsFIFO(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.Signals().Push(ctx, pendingSignal("b", base.Add(time.Second))))
	require.NoError(t, store.Signals().Push(ctx, pendingSignal("a", base)))

	first, err := store.Signals().PopPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, models.SignalProcessing, first.Status)

	second, err := store.Signals().PopPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "b", second.ID)
}

func TestPopPendingEmptyQueue(t *testing.T) {
	store := New()
	sig, err := store.Signals().PopPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestProcessingSignalIsNotRedelivered(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Signals().Push(ctx, pendingSignal("a", time.Now())))
	_, err := store.Signals().PopPending(ctx)
	require.NoError(t, err)

	again, err := store.Signals().PopPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestCompleteSetsTerminalState(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Signals().Push(ctx, pendingSignal("a", time.Now())))
	sig, err := store.Signals().PopPending(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Signals().Complete(ctx, sig.ID, models.SignalExecuted))

	count, err := store.Signals().PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = store.Signals().Complete(ctx, "missing", models.SignalSkipped)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivePositionsFiltersClosed(t *testing.T) {
	store := New()
	ctx := context.Background()

	open := &models.Position{ID: "p1", TokenMint: "mint1", Status: models.PositionOpen}
	partial := &models.Position{ID: "p2", TokenMint: "mint2", Status: models.PositionPartial}
	closed := &models.Position{ID: "p3", TokenMint: "mint3", Status: models.PositionClosed}
	for _, p := range []*models.Position{open, partial, closed} {
		require.NoError(t, store.Positions().SavePosition(ctx, p))
	}

	active, err := store.Positions().ActivePositions(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestStatsRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Positions().LoadStats(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stats := &models.AggregateStats{ID: 1, StartingBalance: 10, CurrentBalance: 12, GoalBalance: 100}
	require.NoError(t, store.Positions().SaveStats(ctx, stats))

	loaded, err := store.Positions().LoadStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, loaded.CurrentBalance, 1e-9)
	assert.InDelta(t, 12.0, loaded.GoalProgress(), 1e-9)
}
