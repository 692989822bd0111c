package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/jwseok/lotto645-harvester/internal/progress"
)

// Report is the accumulated outcome of one run: how many units were
// processed, which failed and why, and coarse volume counters. It replaces a
// binary success signal in CLI output and snapshot metadata.
type Report struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitempty"`
	Processed int           `json:"processedUnits"`
	Pages     int           `json:"pages"`
	Records   int           `json:"records"`
	Bytes     int64         `json:"bytes"`
	Failures  []UnitFailure `json:"failures"`
	Deviated  bool          `json:"resolverDeviated,omitempty"`
}

// UnitFailure names one unit that did not complete and why.
type UnitFailure struct {
	Unit   string `json:"unit"`
	Reason string `json:"reason"`
}

// Collector accumulates run reports in memory. It is the sink behind the
// CLI's run summary and the API's run endpoint.
type Collector struct {
	mu      sync.Mutex
	reports map[string]*Report
	lastRun string
}

// NewCollector builds an empty Collector.
func NewCollector() *Collector {
	return &Collector{reports: make(map[string]*Report)}
}

// Consume folds a batch into the per-run reports.
func (c *Collector) Consume(_ context.Context, batch []progress.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, evt := range batch {
		report := c.reports[evt.RunID]
		if report == nil {
			report = &Report{RunID: evt.RunID, Failures: []UnitFailure{}}
			c.reports[evt.RunID] = report
			c.lastRun = evt.RunID
		}
		switch evt.Stage {
		case progress.StageRunStart:
			report.StartedAt = evt.TS
		case progress.StageResolveDone:
			if evt.Deviated {
				report.Deviated = true
			}
		case progress.StagePageDone:
			report.Pages++
			report.Bytes += evt.Bytes
		case progress.StageUnitDone:
			report.Processed++
			report.Records += evt.Records
		case progress.StageUnitError:
			report.Processed++
			report.Records += evt.Records
			report.Failures = append(report.Failures, UnitFailure{Unit: evt.Unit, Reason: evt.Note})
		case progress.StageRunDone:
			report.EndedAt = evt.TS
		}
	}
	return nil
}

// Report returns a copy of one run's report.
func (c *Collector) Report(runID string) (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.reports[runID]
	if !ok {
		return Report{}, false
	}
	return cloneReport(report), true
}

// Latest returns the most recently started run's report.
func (c *Collector) Latest() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.reports[c.lastRun]
	if !ok {
		return Report{}, false
	}
	return cloneReport(report), true
}

// Close implements the Sink interface; it performs no action.
func (c *Collector) Close(context.Context) error {
	return nil
}

func cloneReport(r *Report) Report {
	cp := *r
	cp.Failures = append([]UnitFailure(nil), r.Failures...)
	return cp
}
