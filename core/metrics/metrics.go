package metrics

import (
	"time"

	"github.com/kilianp07/yds/core/model"
)

// ScheduleRun describes one completed scheduling run.
type ScheduleRun struct {
	RunID         string
	Tasks         int
	Rounds        int
	PeakFrequency float64
	Elapsed       time.Duration
	Executions    []model.Execution
	Time          time.Time
}

// MetricsSink records scheduling runs for observability purposes.
type MetricsSink interface {
	RecordScheduleRun(run ScheduleRun) error
}

// RoundEvent describes one critical interval resolved during a run. Start and
// End are expressed in the compressed timeline of that round.
type RoundEvent struct {
	RunID      string
	Round      int
	Start      float64
	End        float64
	Intensity  float64
	TaskIDs    []string
	Candidates int
	Time       time.Time
}

// RoundRecorder records per-round events.
type RoundRecorder interface {
	RecordRound(ev RoundEvent) error
}

// FailureEvent records a run aborted by an error.
type FailureEvent struct {
	RunID string
	// Kind is "invalid_task", "invariant" or "verify".
	Kind  string
	Error string
	Time  time.Time
}

// FailureRecorder records aborted runs.
type FailureRecorder interface {
	RecordScheduleFailure(ev FailureEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordScheduleRun(ScheduleRun) error      { return nil }
func (NopSink) RecordRound(RoundEvent) error             { return nil }
func (NopSink) RecordScheduleFailure(FailureEvent) error { return nil }
