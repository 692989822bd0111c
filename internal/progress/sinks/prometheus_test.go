package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jwseok/lotto645-harvester/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	batch := []progress.Event{
		{RunID: "run-1", TS: time.Now(), Stage: progress.StageResolveDone, Deviated: true},
		{RunID: "run-1", TS: time.Now(), Stage: progress.StageUnitStart, Unit: "round-1300/first"},
		{
			RunID:       "run-1",
			TS:          time.Now(),
			Stage:       progress.StagePageDone,
			Unit:        "round-1300/first",
			Tier:        "first",
			Page:        1,
			Records:     15,
			Bytes:       2048,
			StatusClass: progress.Status2xx,
			Dur:         150 * time.Millisecond,
		},
		{
			RunID: "run-1",
			TS:    time.Now(),
			Stage: progress.StageUnitDone,
			Unit:  "round-1300/first",
			Tier:  "first",
			Stop:  "section_not_found",
			Dur:   2 * time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitStops.WithLabelValues("section_not_found")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.resolverDeviation))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.pages.WithLabelValues("first", string(progress.Status2xx))),
		1e-9,
	)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.pageBytes), 1e-9)
	require.InDelta(t, 15.0, testutil.ToFloat64(sink.records.WithLabelValues("first")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.pageDuration, "harvester_page_duration_seconds"))
}

func TestPrometheusSinkDefaultsUnknownLabels(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	batch := []progress.Event{
		{RunID: "run-1", TS: time.Now(), Stage: progress.StagePageDone, Unit: "u", Page: 1},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("unknown", string(progress.StatusOther))))
}
