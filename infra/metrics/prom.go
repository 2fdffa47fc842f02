package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/yds/core/metrics"
)

// PromSink records scheduling runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	tasks     prometheus.Counter
	duration  prometheus.Histogram
	rounds    prometheus.Histogram
	intensity prometheus.Histogram
	peak      prometheus.Gauge
}

// NewPromSink registers scheduling metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yds_schedule_runs_total",
			Help: "Total number of scheduling runs by outcome",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yds_scheduled_tasks_total",
			Help: "Total number of tasks placed in a schedule",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yds_schedule_duration_seconds",
			Help:    "Wall time spent computing a schedule",
			Buckets: prometheus.DefBuckets,
		}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yds_schedule_rounds",
			Help:    "Number of critical intervals resolved per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		intensity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yds_critical_interval_intensity",
			Help:    "Processor speed required by each critical interval",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 12),
		}),
		peak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yds_peak_frequency",
			Help: "Highest processor speed required by the last run",
		}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.tasks, err = register(reg, s.tasks); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.rounds, err = register(reg, s.rounds); err != nil {
		return nil, err
	}
	if s.intensity, err = register(reg, s.intensity); err != nil {
		return nil, err
	}
	if s.peak, err = register(reg, s.peak); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScheduleRun updates the run counters, duration and peak speed.
func (s *PromSink) RecordScheduleRun(run coremetrics.ScheduleRun) error {
	s.runs.WithLabelValues("ok").Inc()
	s.tasks.Add(float64(run.Tasks))
	s.duration.Observe(run.Elapsed.Seconds())
	s.rounds.Observe(float64(run.Rounds))
	s.peak.Set(run.PeakFrequency)
	return nil
}

// RecordRound observes the intensity of a critical interval.
func (s *PromSink) RecordRound(ev coremetrics.RoundEvent) error {
	s.intensity.Observe(ev.Intensity)
	return nil
}

// RecordScheduleFailure counts aborted runs by kind.
func (s *PromSink) RecordScheduleFailure(ev coremetrics.FailureEvent) error {
	s.runs.WithLabelValues(ev.Kind).Inc()
	return nil
}
