package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/locate"
	"github.com/jwseok/lotto645-harvester/internal/progress"
)

// unitScriptedPages serves per-unit scripts and fails designated units.
type unitScriptedPages struct {
	mu      sync.Mutex
	failing map[Unit]error
}

func (u *unitScriptedPages) Page(_ context.Context, round draw.Round, tier draw.Tier, page int) ([]draw.Record, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err, ok := u.failing[Unit{Round: round, Tier: tier}]; ok {
		return nil, err
	}
	if page > 1 {
		return nil, locate.ErrSectionNotFound
	}
	return records(round, tier, "상점A", "상점B"), nil
}

type capturingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *capturingEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) byStage(stage progress.Stage) []progress.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []progress.Event
	for _, evt := range c.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func TestPoolHarvestsAllUnits(t *testing.T) {
	t.Parallel()

	src := &unitScriptedPages{}
	h := newTestHarvester(src, Options{})
	emitter := &capturingEmitter{}
	pool := NewPool(h, 3, 4, emitter, "run-1", zap.NewNop())

	units := []Unit{
		{Round: 1299, Tier: draw.TierFirst},
		{Round: 1299, Tier: draw.TierSecond},
		{Round: 1300, Tier: draw.TierFirst},
		{Round: 1300, Tier: draw.TierSecond},
	}
	results := pool.Run(context.Background(), units)
	require.Len(t, results, len(units))
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Len(t, res.Records, 2)
	}

	// Results come back ordered by round then tier regardless of worker
	// interleaving.
	require.Equal(t, draw.Round(1299), results[0].Unit.Round)
	require.Equal(t, draw.Round(1300), results[3].Unit.Round)

	require.Len(t, emitter.byStage(progress.StageUnitStart), 4)
	require.Len(t, emitter.byStage(progress.StageUnitDone), 4)
}

func TestPoolUnitFailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	bad := Unit{Round: 1299, Tier: draw.TierFirst}
	src := &unitScriptedPages{failing: map[Unit]error{bad: errors.New("upstream hiccup")}}
	h := newTestHarvester(src, Options{})
	emitter := &capturingEmitter{}
	pool := NewPool(h, 2, 4, emitter, "run-2", zap.NewNop())

	units := []Unit{
		bad,
		{Round: 1300, Tier: draw.TierFirst},
		{Round: 1300, Tier: draw.TierSecond},
	}
	results := pool.Run(context.Background(), units)
	require.Len(t, results, 3)

	var failed, succeeded int
	for _, res := range results {
		if res.Err != nil {
			failed++
			require.Equal(t, bad, res.Unit)
		} else {
			succeeded++
			require.Len(t, res.Records, 2)
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 2, succeeded)
	require.Len(t, emitter.byStage(progress.StageUnitError), 1)
}

func TestUnitQueueCloseDrains(t *testing.T) {
	t.Parallel()

	q := NewUnitQueue(2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Unit{Round: 1, Tier: draw.TierFirst}))
	q.Close()
	q.Close() // idempotent

	unit, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, draw.Round(1), unit.Round)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestUnitQueueContextCancellation(t *testing.T) {
	t.Parallel()

	q := NewUnitQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
