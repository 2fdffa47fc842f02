package model

import "fmt"

// Execution is one segment of the final schedule. Start and End are absolute
// times in the original timeline; Frequency is the processor speed required
// during the segment.
type Execution struct {
	TaskID    string  `json:"task_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Frequency float64 `json:"frequency"`
}

// Duration returns the length of the segment.
func (e Execution) Duration() float64 { return e.End - e.Start }

// Work returns the amount of work completed during the segment.
func (e Execution) Work() float64 { return e.Duration() * e.Frequency }

func (e Execution) String() string {
	return fmt.Sprintf("%s: %g - %g, f=%g", e.TaskID, e.Start, e.End, e.Frequency)
}
