package model

import (
	"fmt"
	"math"
)

// Task is a unit of work that must run between its release time and deadline.
// Release, Deadline and Offset change while the scheduler compresses the
// timeline; Workload never does.
type Task struct {
	ID       string  `json:"id" yaml:"id"`
	Release  float64 `json:"release" yaml:"release"`
	Deadline float64 `json:"deadline" yaml:"deadline"`
	Workload float64 `json:"workload" yaml:"workload"`
	// Offset is the total amount of excised time that lies before this task's
	// window in the original timeline.
	Offset float64 `json:"-" yaml:"-"`
}

// NewTask returns a task with a zero offset.
func NewTask(id string, release, deadline, workload float64) Task {
	return Task{ID: id, Release: release, Deadline: deadline, Workload: workload}
}

// Validate checks the task can be scheduled at all.
func (t Task) Validate() error {
	switch {
	case math.IsNaN(t.Release) || math.IsNaN(t.Deadline) || math.IsNaN(t.Workload):
		return fmt.Errorf("NaN field")
	case math.IsInf(t.Release, 0) || math.IsInf(t.Deadline, 0) || math.IsInf(t.Workload, 0):
		return fmt.Errorf("infinite field")
	case t.Release >= t.Deadline:
		return fmt.Errorf("release %g not before deadline %g", t.Release, t.Deadline)
	case t.Workload <= 0:
		return fmt.Errorf("workload %g must be positive", t.Workload)
	}
	return nil
}

// Window returns the current length of the task's feasible window.
func (t Task) Window() float64 { return t.Deadline - t.Release }

// Degenerate reports whether the window has collapsed to zero width or less.
func (t Task) Degenerate() bool { return t.Release >= t.Deadline }

func (t Task) String() string {
	return fmt.Sprintf("%s: %g - %g, c=%g", t.ID, t.Release, t.Deadline, t.Workload)
}
