package yds

import (
	"errors"
	"sort"
	"time"

	"github.com/kilianp07/yds/core/logger"
	"github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/internal/eventbus"
)

// Plan is the outcome of a scheduling run.
type Plan struct {
	// Executions are sorted by start time.
	Executions []model.Execution
	Rounds     int
}

// Scheduler runs the critical-interval algorithm. The zero value is usable
// and runs sequentially without logging or events.
type Scheduler struct {
	workers int
	runID   string
	log     logger.Logger
	rounds  metrics.RoundRecorder
	bus     *eventbus.TypedBus[metrics.RoundEvent]
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers evaluates candidate intervals on up to n goroutines.
func WithWorkers(n int) Option { return func(s *Scheduler) { s.workers = n } }

// WithLogger sets the logger used for per-round debug output.
func WithLogger(l logger.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithRunID tags round events with the given run identifier.
func WithRunID(id string) Option { return func(s *Scheduler) { s.runID = id } }

// WithRoundRecorder records every round into r.
func WithRoundRecorder(r metrics.RoundRecorder) Option { return func(s *Scheduler) { s.rounds = r } }

// WithEventBus publishes every round on bus.
func WithEventBus(bus *eventbus.TypedBus[metrics.RoundEvent]) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// New returns a Scheduler configured with opts.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule is a convenience wrapper running a default Scheduler.
func Schedule(tasks []model.Task) ([]model.Execution, error) {
	p, err := New().Schedule(tasks)
	if err != nil {
		return nil, err
	}
	return p.Executions, nil
}

// Schedule computes the energy-minimal schedule for tasks. The input slice is
// copied and never modified. Any invalid task aborts the run before
// scheduling starts; an internal fault aborts it with an *InvariantError.
func (s *Scheduler) Schedule(tasks []model.Task) (*Plan, error) {
	working := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, &InvalidTaskError{Index: i, Task: t, Reason: err}
		}
		t.Offset = 0
		working[i] = t
	}
	log := s.logger()

	plan := &Plan{Executions: make([]model.Execution, 0, len(tasks))}
	for len(working) > 0 {
		plan.Rounds++
		cands := s.candidates(working)
		iv, err := Critical(cands)
		if err != nil {
			return nil, &InvariantError{Round: plan.Rounds, Reason: err.Error()}
		}
		if len(iv.Tasks) == 0 {
			return nil, &InvariantError{Round: plan.Rounds, Interval: iv, Reason: "critical interval contains no task"}
		}

		plan.Executions = append(plan.Executions, Assign(iv)...)
		s.emit(plan.Rounds, iv, len(cands))
		log.Debugw("critical interval", map[string]any{
			"round":     plan.Rounds,
			"start":     iv.Start,
			"end":       iv.End,
			"intensity": iv.Intensity,
			"tasks":     len(iv.Tasks),
			"remaining": len(working) - len(iv.Tasks),
		})

		next := working[:0]
		for _, t := range working {
			if iv.Contains(t) {
				continue
			}
			cut, err := Cut(t, iv)
			if err != nil {
				var ie *InvariantError
				if errors.As(err, &ie) {
					ie.Round = plan.Rounds
				}
				return nil, err
			}
			next = append(next, cut)
		}
		working = next
	}

	sort.SliceStable(plan.Executions, func(i, j int) bool {
		return plan.Executions[i].Start < plan.Executions[j].Start
	})
	return plan, nil
}

func (s *Scheduler) logger() logger.Logger {
	if s.log == nil {
		return logger.NopLogger{}
	}
	return s.log
}

func (s *Scheduler) candidates(tasks []model.Task) []Interval {
	if s.workers > 1 {
		return parallelCandidates(tasks, s.workers)
	}
	return Candidates(tasks)
}

func (s *Scheduler) emit(round int, iv Interval, candidates int) {
	if s.rounds == nil && s.bus == nil {
		return
	}
	ids := make([]string, len(iv.Tasks))
	for i, t := range iv.Tasks {
		ids[i] = t.ID
	}
	ev := metrics.RoundEvent{
		RunID:      s.runID,
		Round:      round,
		Start:      iv.Start,
		End:        iv.End,
		Intensity:  iv.Intensity,
		TaskIDs:    ids,
		Candidates: candidates,
		Time:       time.Now(),
	}
	if s.rounds != nil {
		if err := s.rounds.RecordRound(ev); err != nil {
			s.logger().Warnf("record round %d: %v", round, err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
