package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwseok/lotto645-harvester/internal/progress"
)

// PrometheusSink exports harvester progress metrics. It owns all collectors
// for unit lifecycle, page fetches, and resolver deviations, registered
// against an injected registry so tests can isolate registration.
type PrometheusSink struct {
	unitsStarted   prometheus.Counter
	unitsCompleted *prometheus.CounterVec
	unitStops      *prometheus.CounterVec
	unitDuration   *prometheus.HistogramVec

	pages        *prometheus.CounterVec
	pageBytes    prometheus.Counter
	pageDuration *prometheus.HistogramVec
	records      *prometheus.CounterVec

	resolverDeviation prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		unitsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_units_started_total",
			Help: "Total harvest units that have started.",
		}),
		unitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_units_completed_total",
			Help: "Total harvest units completed partitioned by result.",
		}, []string{"result"}),
		unitStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_unit_stops_total",
			Help: "Unit stop reasons, guards and normal completions alike.",
		}, []string{"reason"}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_unit_duration_seconds",
			Help:    "Wall time per completed unit.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"result"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Page fetch completions partitioned by tier and status class.",
		}, []string{"tier", "status_class"}),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_page_bytes_total",
			Help: "Decoded bytes across fetched pages.",
		}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_page_duration_seconds",
			Help:    "Page fetch duration partitioned by tier.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"tier"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Records extracted, partitioned by tier.",
		}, []string{"tier"}),
		resolverDeviation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_resolver_deviation_total",
			Help: "Resolutions where probe and schedule disagreed beyond tolerance.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.unitsStarted,
		s.unitsCompleted,
		s.unitStops,
		s.unitDuration,
		s.pages,
		s.pageBytes,
		s.pageDuration,
		s.records,
		s.resolverDeviation,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageResolveDone:
		if evt.Deviated {
			s.resolverDeviation.Inc()
		}
	case progress.StageUnitStart:
		s.unitsStarted.Inc()
	case progress.StageUnitDone:
		s.completeUnit(evt, "success")
	case progress.StageUnitError:
		s.completeUnit(evt, "error")
	case progress.StagePageDone:
		s.handlePageEvent(evt)
	}
}

func (s *PrometheusSink) completeUnit(evt progress.Event, result string) {
	s.unitsCompleted.WithLabelValues(result).Inc()
	if evt.Stop != "" {
		s.unitStops.WithLabelValues(evt.Stop).Inc()
	}
	if evt.Dur > 0 {
		s.unitDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	tier := evt.Tier
	if tier == "" {
		tier = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.pages.WithLabelValues(tier, statusClass).Inc()
	if evt.Bytes > 0 {
		s.pageBytes.Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(tier).Observe(evt.Dur.Seconds())
	}
	if evt.Records > 0 {
		s.records.WithLabelValues(tier).Add(float64(evt.Records))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
