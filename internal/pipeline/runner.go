// Package pipeline runs a task set through the scheduler and fans the
// result out to metrics, storage and the broker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coremetrics "github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/core/monitoring"
	"github.com/kilianp07/yds/core/yds"
	"github.com/kilianp07/yds/infra/cache"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/infra/store"
	"github.com/kilianp07/yds/internal/eventbus"
)

// RunStore persists computed schedules.
type RunStore interface {
	Save(ctx context.Context, run store.Run, execs []model.Execution) error
}

// SchedulePublisher announces computed schedules.
type SchedulePublisher interface {
	PublishSchedule(ctx context.Context, runID string, execs []model.Execution) error
}

// ScheduleCache remembers schedules of previously seen task sets.
type ScheduleCache interface {
	Get(ctx context.Context, tasks []model.Task) (cache.Entry, error)
	Put(ctx context.Context, tasks []model.Task, e cache.Entry) error
}

const tracerName = "github.com/kilianp07/yds/internal/pipeline"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// Result is the outcome of one run.
type Result struct {
	RunID      string            `json:"run_id"`
	Executions []model.Execution `json:"executions"`
	Rounds     int               `json:"rounds"`
	Summary    yds.Summary       `json:"summary"`
	Overlaps   int               `json:"overlaps"`
	Departures int               `json:"departures"`
	Cached     bool              `json:"cached"`
}

// RunnerOptions configures a Runner. Nil collaborators are skipped.
type RunnerOptions struct {
	Workers   int
	Verify    bool
	Tolerance float64
	Sink      coremetrics.MetricsSink
	Store     RunStore
	Publisher SchedulePublisher
	Cache     ScheduleCache
	Bus       *eventbus.TypedBus[coremetrics.RoundEvent]
	Logger    logger.Logger
}

// Runner schedules a task set and fans the result out to metrics, storage and
// the broker.
type Runner struct {
	opts RunnerOptions
	log  logger.Logger
}

// NewRunner returns a Runner using opts.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Sink == nil {
		opts.Sink = coremetrics.NopSink{}
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = yds.DefaultTolerance
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("runner")
	}
	return &Runner{opts: opts, log: log}
}

// Run schedules tasks under a fresh run id. source labels the origin of the
// task set in the run history.
func (r *Runner) Run(ctx context.Context, source string, tasks []model.Task) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()

	ctx, span := tracer().Start(ctx, "yds.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.source", source),
		attribute.Int("run.tasks", len(tasks)),
	))
	defer span.End()

	plan, cached, err := r.schedule(ctx, runID, tasks)
	if err != nil {
		r.fail(span, runID, err)
		return nil, err
	}
	if r.opts.Verify {
		if err := yds.Verify(tasks, plan.Executions, r.opts.Tolerance); err != nil {
			r.fail(span, runID, err)
			return nil, err
		}
	}

	res := &Result{
		RunID:      runID,
		Executions: plan.Executions,
		Rounds:     plan.Rounds,
		Summary:    yds.Summarize(plan.Executions),
		Cached:     cached,
	}
	if ov := yds.Overlaps(plan.Executions, r.opts.Tolerance); len(ov) > 0 {
		res.Overlaps = len(ov)
		r.log.Warnf("run %s: %d overlapping segments, first %s / %s", runID, len(ov), ov[0].First, ov[0].Second)
	}
	if deps := yds.WindowDepartures(tasks, plan.Executions, r.opts.Tolerance); len(deps) > 0 {
		res.Departures = len(deps)
		d := deps[0]
		r.log.Warnf("run %s: %d segments outside their task window, first %s in [%g, %g)", runID, len(deps), d.Execution, d.Release, d.Deadline)
	}
	span.SetAttributes(
		attribute.Int("run.rounds", plan.Rounds),
		attribute.Int("run.segments", len(plan.Executions)),
		attribute.Int("run.overlaps", res.Overlaps),
		attribute.Int("run.departures", res.Departures),
		attribute.Bool("run.cached", cached),
		attribute.Float64("run.peak_frequency", res.Summary.MaxFrequency),
	)

	if err := r.opts.Sink.RecordScheduleRun(coremetrics.ScheduleRun{
		RunID:         runID,
		Tasks:         len(tasks),
		Rounds:        plan.Rounds,
		PeakFrequency: res.Summary.MaxFrequency,
		Elapsed:       time.Since(started),
		Executions:    plan.Executions,
		Time:          started,
	}); err != nil {
		r.log.Errorf("record run %s: %v", runID, err)
	}

	if err := r.fanOut(ctx, runID, source, started, len(tasks), res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetStatus(codes.Ok, "")
	r.log.Infof("run %s: %d tasks, %d rounds, peak frequency %g", runID, len(tasks), plan.Rounds, res.Summary.MaxFrequency)
	return res, nil
}

// schedule serves tasks from the cache when possible and computes them
// otherwise. Cache failures only cost a recomputation.
func (r *Runner) schedule(ctx context.Context, runID string, tasks []model.Task) (*yds.Plan, bool, error) {
	if r.opts.Cache != nil {
		e, err := r.opts.Cache.Get(ctx, tasks)
		switch {
		case err == nil:
			r.log.Debugf("run %s: cache hit", runID)
			return &yds.Plan{Executions: e.Executions, Rounds: e.Rounds}, true, nil
		case !errors.Is(err, cache.ErrMiss):
			r.log.Warnf("run %s: cache lookup: %v", runID, err)
		}
	}

	_, span := tracer().Start(ctx, "yds.schedule", trace.WithAttributes(
		attribute.Int("scheduler.workers", r.opts.Workers),
	))
	schedOpts := []yds.Option{
		yds.WithWorkers(r.opts.Workers),
		yds.WithRunID(runID),
		yds.WithLogger(r.log),
	}
	if rec, ok := r.opts.Sink.(coremetrics.RoundRecorder); ok {
		schedOpts = append(schedOpts, yds.WithRoundRecorder(rec))
	}
	if r.opts.Bus != nil {
		schedOpts = append(schedOpts, yds.WithEventBus(r.opts.Bus))
	}
	plan, err := yds.New(schedOpts...).Schedule(tasks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, false, err
	}
	span.SetAttributes(attribute.Int("scheduler.rounds", plan.Rounds))
	span.End()

	if r.opts.Cache != nil {
		if err := r.opts.Cache.Put(ctx, tasks, cache.Entry{Executions: plan.Executions, Rounds: plan.Rounds}); err != nil {
			r.log.Warnf("run %s: cache store: %v", runID, err)
		}
	}
	return plan, false, nil
}

// fanOut stores and publishes a computed schedule.
func (r *Runner) fanOut(ctx context.Context, runID, source string, started time.Time, tasks int, res *Result) error {
	if r.opts.Store != nil {
		run := store.Run{
			ID:            runID,
			CreatedAt:     started,
			Source:        source,
			Tasks:         tasks,
			Rounds:        res.Rounds,
			PeakFrequency: res.Summary.MaxFrequency,
		}
		if err := r.opts.Store.Save(ctx, run, res.Executions); err != nil {
			r.log.Errorf("store run %s: %v", runID, err)
			return fmt.Errorf("store run %s: %w", runID, err)
		}
	}
	if r.opts.Publisher != nil {
		if err := r.opts.Publisher.PublishSchedule(ctx, runID, res.Executions); err != nil {
			r.log.Errorf("publish run %s: %v", runID, err)
			return fmt.Errorf("publish run %s: %w", runID, err)
		}
	}
	return nil
}

func (r *Runner) fail(span trace.Span, runID string, err error) {
	kind := failureKind(err)
	span.SetAttributes(attribute.String("run.failure", kind))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if rec, ok := r.opts.Sink.(coremetrics.FailureRecorder); ok {
		if rerr := rec.RecordScheduleFailure(coremetrics.FailureEvent{
			RunID: runID, Kind: kind, Error: err.Error(), Time: time.Now(),
		}); rerr != nil {
			r.log.Errorf("record failure %s: %v", runID, rerr)
		}
	}
	if kind == "invalid_task" {
		r.log.Warnf("run %s rejected: %v", runID, err)
		return
	}
	r.log.Errorf("run %s failed: %v", runID, err)
	monitoring.Report(err, map[string]string{"run_id": runID, "kind": kind})
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, yds.ErrInvalidTask):
		return "invalid_task"
	case errors.Is(err, yds.ErrScheduleMismatch):
		return "verify"
	}
	return "invariant"
}
