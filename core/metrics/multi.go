package metrics

import (
	"errors"
	"io"
)

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScheduleRun forwards the run to all sinks, returning the first error encountered.
func (m *MultiSink) RecordScheduleRun(run ScheduleRun) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleRun(run); err != nil {
			return err
		}
	}
	return nil
}

// RecordRound forwards round events to sinks that support them.
func (m *MultiSink) RecordRound(ev RoundEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RoundRecorder); ok {
			if err := rec.RecordRound(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordScheduleFailure forwards failures to sinks that support them.
func (m *MultiSink) RecordScheduleFailure(ev FailureEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FailureRecorder); ok {
			if err := rec.RecordScheduleFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
