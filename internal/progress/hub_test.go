package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

// TestHubDefaults pins the zero-config knobs to run-sized values: a harvest
// emits bursts of low hundreds of events, so the buffer and batch stay small
// and the flush wait short.
func TestHubDefaults(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	require.Equal(t, 512, hub.cfg.BufferSize)
	require.Equal(t, 64, hub.cfg.MaxBatchEvents)
	require.Equal(t, 250*time.Millisecond, hub.cfg.MaxBatchWait)
	require.Equal(t, 5*time.Second, hub.cfg.SinkTimeout)
}

// TestHubFlushBySize verifies a full batch flushes without waiting for the
// timer.
func TestHubFlushBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageRunStart)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubFlushByTimer verifies a lone event still reaches the sinks within
// the batch wait.
func TestHubFlushByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNeverBlocks asserts Emit returns immediately even with nothing
// draining the intake channel.
func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageRunStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubCountsDropsWhenFull verifies overflow events are dropped and
// accounted for instead of blocking the emitter.
func TestHubCountsDropsWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:      Config{},
		events:   make(chan Event, 1),
		logger:   zap.NewNop(),
		dropWarn: dropThrottle{every: time.Hour},
	}
	// Arm the throttle so the warning path does not reset the counter
	// mid-test.
	hub.dropWarn.last.Store(time.Now().UnixNano())

	evt := sampleEvent(StageRunStart)
	hub.Emit(evt)
	hub.Emit(evt)
	hub.Emit(evt)
	require.EqualValues(t, 2, hub.dropped.Load())
}

// TestHubFlushOnClose ensures Close drains buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	evt := sampleEvent(StageRunStart)
	hub.Emit(evt)

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyBatch := append([]Event(nil), batch...)
	s.batches = append(s.batches, copyBatch)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(stage Stage) Event {
	return Event{
		RunID: uuid.NewString(),
		TS:    time.Now(),
		Stage: stage,
	}
}
