package yds

import (
	"errors"
	"fmt"

	"github.com/kilianp07/yds/core/model"
)

var (
	// ErrInvalidTask is returned when an input task cannot be scheduled.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvariant signals an internal inconsistency of the algorithm. It is a
	// defect, never a user error.
	ErrInvariant = errors.New("internal invariant violation")
	// ErrNoCandidates is returned when a critical interval is requested from
	// an empty candidate set.
	ErrNoCandidates = errors.New("no candidate intervals")
)

// InvalidTaskError describes a rejected input task.
type InvalidTaskError struct {
	Index  int
	Task   model.Task
	Reason error
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("invalid task %q at index %d: %v", e.Task.ID, e.Index, e.Reason)
}

func (e *InvalidTaskError) Unwrap() error { return ErrInvalidTask }

// InvariantError carries the full state that led to an internal fault.
type InvariantError struct {
	Round    int
	Task     model.Task
	Interval Interval
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: round %d: %s (task %s, offset=%g; interval [%g, %g) with %d tasks)",
		ErrInvariant, e.Round, e.Reason, e.Task, e.Task.Offset, e.Interval.Start, e.Interval.End, len(e.Interval.Tasks))
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Tags returns a flat description of the fault suitable for error reporting.
func (e *InvariantError) Tags() map[string]string {
	return map[string]string{
		"round":          fmt.Sprint(e.Round),
		"task_id":        e.Task.ID,
		"task_release":   fmt.Sprint(e.Task.Release),
		"task_deadline":  fmt.Sprint(e.Task.Deadline),
		"task_offset":    fmt.Sprint(e.Task.Offset),
		"interval_start": fmt.Sprint(e.Interval.Start),
		"interval_end":   fmt.Sprint(e.Interval.End),
	}
}
