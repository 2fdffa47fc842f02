package yds

import (
	"slices"
	"sort"

	"github.com/kilianp07/yds/core/model"
)

// Assign splits the critical interval among its tasks in proportion to their
// workload. Tasks run back to back in earliest-deadline-first order starting
// at the interval start; equal deadlines keep their current order. Every
// segment runs at the interval's intensity.
func Assign(iv Interval) []model.Execution {
	ordered := slices.Clone(iv.Tasks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Deadline < ordered[j].Deadline })

	length := iv.Length()
	cursor := iv.Start
	out := make([]model.Execution, 0, len(ordered))
	for _, t := range ordered {
		d := t.Workload / iv.Workload * length
		start := cursor + t.Offset
		out = append(out, model.Execution{
			TaskID:    t.ID,
			Start:     start,
			End:       start + d,
			Frequency: iv.Intensity,
		})
		cursor += d
	}
	return out
}
