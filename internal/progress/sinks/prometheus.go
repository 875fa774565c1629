package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/venue-harvester/internal/progress"
)

// PrometheusSink exports run, target and fetch progress as Prometheus metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   prometheus.Histogram

	targets *prometheus.CounterVec
	records prometheus.Counter

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	mu     sync.Mutex
	active map[[16]byte]struct{}
}

// NewPrometheusSink registers the collectors against reg, or the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Harvest runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_runs_active",
			Help: "Harvest runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_targets_total",
			Help: "Venue-year targets finished partitioned by status.",
		}, []string{"status"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_records_total",
			Help: "Publication records written to datasets.",
		}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_fetch_requests_total",
			Help: "HTTP exchanges partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "HTTP exchange duration partitioned by site and status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"site", "status_class"}),
		active: make(map[[16]byte]struct{}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.targets,
		s.records,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			if s.track(evt.RunID, true) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone:
			result := evt.Note
			if result == "" {
				result = "ok"
			}
			s.runsCompleted.WithLabelValues(result).Inc()
			if evt.Dur > 0 {
				s.runDuration.Observe(evt.Dur.Seconds())
			}
			if s.track(evt.RunID, false) {
				s.runsActive.Dec()
			}
		case progress.StageTargetDone:
			s.targets.WithLabelValues(evt.Note).Inc()
			if evt.Records > 0 {
				s.records.Add(float64(evt.Records))
			}
		case progress.StageFetchDone:
			s.observeFetch(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) observeFetch(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	class := string(evt.StatusClass)
	if class == "" {
		class = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(site, class).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site, class).Observe(evt.Dur.Seconds())
	}
}

// track records a run starting or finishing and reports whether the active set changed.
func (s *PrometheusSink) track(id [16]byte, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.active[id]
	if start {
		if running {
			return false
		}
		s.active[id] = struct{}{}
		return true
	}
	if !running {
		return false
	}
	delete(s.active, id)
	return true
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
