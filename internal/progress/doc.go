// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that harvest workers use to report run progress. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as Prometheus metrics, structured logs, or the in-memory run
// report.
package progress
