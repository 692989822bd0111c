package harvest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/progress"
)

// Pool fans independent units out to a bounded set of workers over a
// context-aware queue. Each worker runs one unit at a time through the
// harvester; results are collected and handed back in one slice so the
// caller can merge them with a single writer.
type Pool struct {
	harvester *Harvester
	workers   int
	queue     *UnitQueue
	emitter   progress.Emitter
	runID     string
	logger    *zap.Logger
}

// NewPool builds a worker pool over the harvester.
func NewPool(h *Harvester, workers, queueDepth int, emitter progress.Emitter, runID string, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers * 2
	}
	return &Pool{
		harvester: h,
		workers:   workers,
		queue:     NewUnitQueue(queueDepth),
		emitter:   emitter,
		runID:     runID,
		logger:    logger,
	}
}

// Run harvests every unit and returns all results, ordered by round then
// tier. Per-unit failures never abort siblings; the failed unit's result
// carries its error and partial records.
func (p *Pool) Run(ctx context.Context, units []Unit) []UnitResult {
	results := make(chan UnitResult, len(units))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx, results)
		}()
	}

	for _, unit := range units {
		if err := p.queue.Enqueue(ctx, unit); err != nil {
			p.logger.Warn("unit never enqueued", zap.String("unit", unit.ID()), zap.Error(err))
			results <- UnitResult{Unit: unit, Stop: StopBudgetExceeded, Err: err}
		}
	}
	p.queue.Close()
	wg.Wait()
	close(results)

	out := make([]UnitResult, 0, len(units))
	for res := range results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Unit.Round != out[j].Unit.Round {
			return out[i].Unit.Round < out[j].Unit.Round
		}
		return out[i].Unit.Tier < out[j].Unit.Tier
	})
	return out
}

func (p *Pool) work(ctx context.Context, results chan<- UnitResult) {
	for {
		unit, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				p.logger.Warn("worker dequeue failed", zap.Error(err))
			}
			return
		}
		p.emit(progress.Event{
			Stage: progress.StageUnitStart,
			Unit:  unit.ID(),
			Round: int(unit.Round),
			Tier:  string(unit.Tier),
		})
		start := time.Now()
		res := p.harvester.Harvest(ctx, unit)
		evt := progress.Event{
			Unit:    unit.ID(),
			Round:   int(unit.Round),
			Tier:    string(unit.Tier),
			Records: len(res.Records),
			Stop:    string(res.Stop),
			Dur:     time.Since(start),
		}
		if res.Err != nil {
			evt.Stage = progress.StageUnitError
			evt.Note = res.Err.Error()
		} else {
			evt.Stage = progress.StageUnitDone
		}
		p.emit(evt)
		results <- res
	}
}

func (p *Pool) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	evt.RunID = p.runID
	evt.TS = time.Now().UTC()
	p.emitter.Emit(evt)
}
