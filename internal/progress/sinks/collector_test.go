package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jwseok/lotto645-harvester/internal/progress"
)

func TestCollectorBuildsRunReport(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	started := time.Now().UTC()
	batch := []progress.Event{
		{RunID: "run-1", TS: started, Stage: progress.StageRunStart},
		{RunID: "run-1", TS: started, Stage: progress.StageResolveDone, Deviated: true},
		{RunID: "run-1", TS: started, Stage: progress.StagePageDone, Unit: "round-1300/first", Page: 1, Bytes: 1000},
		{RunID: "run-1", TS: started, Stage: progress.StagePageDone, Unit: "round-1300/first", Page: 2, Bytes: 500},
		{RunID: "run-1", TS: started, Stage: progress.StageUnitDone, Unit: "round-1300/first", Records: 17},
		{RunID: "run-1", TS: started, Stage: progress.StageUnitError, Unit: "round-1299/first", Note: "transport down"},
		{RunID: "run-1", TS: started.Add(time.Minute), Stage: progress.StageRunDone},
	}
	require.NoError(t, c.Consume(context.Background(), batch))

	report, ok := c.Report("run-1")
	require.True(t, ok)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 2, report.Pages)
	require.Equal(t, 17, report.Records)
	require.EqualValues(t, 1500, report.Bytes)
	require.True(t, report.Deviated)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "round-1299/first", report.Failures[0].Unit)
	require.Equal(t, "transport down", report.Failures[0].Reason)
	require.Equal(t, started, report.StartedAt)
	require.False(t, report.EndedAt.IsZero())
}

func TestCollectorLatestTracksNewestRun(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	ts := time.Now().UTC()
	require.NoError(t, c.Consume(context.Background(), []progress.Event{
		{RunID: "run-1", TS: ts, Stage: progress.StageRunStart},
		{RunID: "run-2", TS: ts.Add(time.Second), Stage: progress.StageRunStart},
	}))

	report, ok := c.Latest()
	require.True(t, ok)
	require.Equal(t, "run-2", report.RunID)

	_, ok = c.Report("missing")
	require.False(t, ok)
}

func TestCollectorReportIsACopy(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	ts := time.Now().UTC()
	require.NoError(t, c.Consume(context.Background(), []progress.Event{
		{RunID: "run-1", TS: ts, Stage: progress.StageUnitError, Unit: "u", Note: "boom"},
	}))

	report, ok := c.Report("run-1")
	require.True(t, ok)
	report.Failures[0].Reason = "mutated"

	again, _ := c.Report("run-1")
	require.Equal(t, "boom", again.Failures[0].Reason)
}
