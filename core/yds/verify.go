package yds

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/yds/core/model"
)

// ErrScheduleMismatch is wrapped by every failure reported by Verify.
var ErrScheduleMismatch = errors.New("schedule does not satisfy tasks")

// DefaultTolerance is the absolute and relative tolerance used by Verify when
// none is given.
const DefaultTolerance = 1e-9

// Verify checks a finished schedule against the tasks it was computed from:
// every task has exactly one execution performing exactly its workload, every
// execution lies inside the horizon spanned by the tasks, and executions are
// sorted by start time. Task identifiers must be unique for the check to be
// meaningful.
//
// Segments are placed by splitting each critical interval in proportion to
// workload, so a segment may start before its task's release or end after its
// deadline. Such placements are reported by WindowDepartures, not here.
func Verify(tasks []model.Task, execs []model.Execution, tol float64) error {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	byID := make(map[string]model.Task, len(tasks))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %q", ErrScheduleMismatch, t.ID)
		}
		byID[t.ID] = t
		lo = math.Min(lo, t.Release)
		hi = math.Max(hi, t.Deadline)
	}
	if len(execs) != len(tasks) {
		return fmt.Errorf("%w: %d executions for %d tasks", ErrScheduleMismatch, len(execs), len(tasks))
	}
	seen := make(map[string]bool, len(execs))
	for i, e := range execs {
		t, ok := byID[e.TaskID]
		if !ok {
			return fmt.Errorf("%w: execution for unknown task %q", ErrScheduleMismatch, e.TaskID)
		}
		if seen[e.TaskID] {
			return fmt.Errorf("%w: task %q executed twice", ErrScheduleMismatch, e.TaskID)
		}
		seen[e.TaskID] = true
		if i > 0 && e.Start < execs[i-1].Start {
			return fmt.Errorf("%w: execution %d starts before its predecessor", ErrScheduleMismatch, i)
		}
		if e.End < e.Start {
			return fmt.Errorf("%w: %v ends before it starts", ErrScheduleMismatch, e)
		}
		if e.Start < lo-slack(lo, tol) || e.End > hi+slack(hi, tol) {
			return fmt.Errorf("%w: %v outside horizon [%g, %g)", ErrScheduleMismatch, e, lo, hi)
		}
		if !scalar.EqualWithinAbsOrRel(e.Work(), t.Workload, tol, tol) {
			return fmt.Errorf("%w: %v performs %g work, want %g", ErrScheduleMismatch, e, e.Work(), t.Workload)
		}
	}
	return nil
}

func slack(v, tol float64) float64 {
	return tol * math.Max(1, math.Abs(v))
}

// Departure is an execution placed partly outside its task's window.
type Departure struct {
	Execution model.Execution
	Release   float64
	Deadline  float64
}

// WindowDepartures returns the executions that start before their task's
// release or end after its deadline by more than tol. Executions of unknown
// tasks are ignored.
func WindowDepartures(tasks []model.Task, execs []model.Execution, tol float64) []Departure {
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	var out []Departure
	for _, e := range execs {
		t, ok := byID[e.TaskID]
		if !ok {
			continue
		}
		if e.Start < t.Release-tol || e.End > t.Deadline+tol {
			out = append(out, Departure{Execution: e, Release: t.Release, Deadline: t.Deadline})
		}
	}
	return out
}

// Overlap is a pair of executions sharing processor time.
type Overlap struct {
	First  model.Execution
	Second model.Execution
}

// Overlaps returns every pair of executions whose intervals intersect by more
// than tol. Each task keeps a single segment, so a task whose window spanned
// an earlier critical interval can be placed across it.
func Overlaps(execs []model.Execution, tol float64) []Overlap {
	sorted := make([]model.Execution, len(execs))
	copy(sorted, execs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	var out []Overlap
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Start >= sorted[i].End-tol {
				break
			}
			out = append(out, Overlap{First: sorted[i], Second: sorted[j]})
		}
	}
	return out
}

// Summary describes a schedule.
type Summary struct {
	Segments     int     `json:"segments"`
	Span         float64 `json:"span"`
	BusyTime     float64 `json:"busy_time"`
	TotalWork    float64 `json:"total_work"`
	MinFrequency float64 `json:"min_frequency"`
	MaxFrequency float64 `json:"max_frequency"`
}

// Summarize aggregates the executions of a schedule.
func Summarize(execs []model.Execution) Summary {
	if len(execs) == 0 {
		return Summary{}
	}
	s := Summary{
		Segments:     len(execs),
		MinFrequency: math.Inf(1),
		MaxFrequency: math.Inf(-1),
	}
	first, last := math.Inf(1), math.Inf(-1)
	for _, e := range execs {
		first = math.Min(first, e.Start)
		last = math.Max(last, e.End)
		s.BusyTime += e.Duration()
		s.TotalWork += e.Work()
		s.MinFrequency = math.Min(s.MinFrequency, e.Frequency)
		s.MaxFrequency = math.Max(s.MaxFrequency, e.Frequency)
	}
	s.Span = last - first
	return s
}
