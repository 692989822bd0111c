package progress

import "context"

// Sink receives the batches the Hub flushes. Implementations must honor the
// ctx deadline and tolerate being called again after an error; the Hub logs
// failures and keeps going. The batch slice is shared across sinks and must
// be treated as read-only.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter is the producer-side view of the Hub. Harvest workers and the run
// orchestrator hold this instead of the Hub so they stay agnostic about
// buffering and fan-out.
type Emitter interface {
	Emit(evt Event)
}
