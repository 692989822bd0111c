package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config tunes the Hub. A harvest run emits a handful of lifecycle events per
// unit plus one event per fetched page, so traffic arrives in bursts of low
// hundreds rather than a steady stream; the defaults are sized for that.
//   - BufferSize: capacity of the intake channel (default 512).
//   - MaxBatchEvents: flush once this many events are buffered (default 64).
//   - MaxBatchWait: flush this long after the first buffered event (default 250ms).
//   - SinkTimeout: per-sink deadline for one flush (default 5s).
//   - BaseContext: parent context for sink calls (defaults to context.Background()).
//   - Logger: receives drop and sink-failure warnings.
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	BaseContext    context.Context
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 512
	defaultMaxBatchEvents = 64
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 5 * time.Second
	dropWarnEvery         = 5 * time.Second
)

// Hub collects run events and fans them out to the registered sinks in
// batches. Emit never blocks, so pool workers stay on schedule even when a
// sink stalls.
type Hub struct {
	cfg      Config
	sinks    []Sink
	events   chan Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *zap.Logger
	dropWarn dropThrottle
	dropped  atomic.Int64
	closed   atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts the batching goroutine over the given sinks. The Hub accepts
// events immediately.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:      cfg,
		sinks:    append([]Sink(nil), sinks...),
		events:   make(chan Event, cfg.BufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
		dropWarn: dropThrottle{every: dropWarnEvery},
	}
	go h.run()
	return h
}

// Emit queues one event and returns immediately. A full buffer drops the
// event rather than stalling the caller; drops are counted and surfaced
// through a rate-limited warning.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		if h.dropWarn.allow(time.Now()) {
			count := h.dropped.Swap(0)
			h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", count))
		}
	}
}

// Close drains buffered events, flushes and closes the sinks, and waits for
// the batching goroutine to exit. Repeat calls are no-ops once shutdown
// begins.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	b := newBatcher(h.cfg.MaxBatchEvents, h.cfg.MaxBatchWait)
	defer b.disarm()
	for {
		select {
		case evt := <-h.events:
			if b.add(evt) {
				h.flush(b.take())
			} else {
				b.arm()
			}
		case <-b.timer.C:
			b.armed = false
			h.flush(b.take())
		case <-h.stopCh:
			h.drain(b)
			return
		}
	}
}

// drain empties the intake channel after stop, flushes the remainder, and
// closes the sinks.
func (h *Hub) drain(b *batcher) {
	b.disarm()
	for {
		select {
		case evt := <-h.events:
			if b.add(evt) {
				h.flush(b.take())
			}
		default:
			h.flush(b.take())
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	baseCtx := h.cfg.BaseContext
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx := baseCtx
		cancel := func() {}
		if h.cfg.SinkTimeout > 0 {
			ctx, cancel = context.WithTimeout(baseCtx, h.cfg.SinkTimeout)
		}
		if err := sink.Consume(ctx, batch); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// batcher owns the pending slice and the flush timer for the run loop. The
// timer counts from the first buffered event, so a lone run_start still
// reaches the sinks within MaxBatchWait.
type batcher struct {
	pending []Event
	limit   int
	wait    time.Duration
	timer   *time.Timer
	armed   bool
}

func newBatcher(limit int, wait time.Duration) *batcher {
	timer := time.NewTimer(wait)
	if !timer.Stop() {
		<-timer.C
	}
	return &batcher{
		pending: make([]Event, 0, limit),
		limit:   limit,
		wait:    wait,
		timer:   timer,
	}
}

// add buffers one event and reports whether the batch is full.
func (b *batcher) add(evt Event) bool {
	b.pending = append(b.pending, evt)
	return len(b.pending) >= b.limit
}

// take hands the pending batch to the caller and starts a fresh one.
func (b *batcher) take() []Event {
	batch := b.pending
	b.pending = make([]Event, 0, b.limit)
	b.disarm()
	return batch
}

func (b *batcher) arm() {
	if b.armed || b.wait <= 0 {
		return
	}
	b.timer.Reset(b.wait)
	b.armed = true
}

func (b *batcher) disarm() {
	if !b.armed {
		return
	}
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.armed = false
}

// dropThrottle limits how often the drop warning is logged.
type dropThrottle struct {
	every time.Duration
	last  atomic.Int64
}

func (d *dropThrottle) allow(now time.Time) bool {
	if d == nil || d.every <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := d.last.Load()
	if nano-last < d.every.Nanoseconds() {
		return false
	}
	return d.last.CompareAndSwap(last, nano)
}
