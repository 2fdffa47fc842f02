package yds

import (
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/yds/core/model"
)

// Interval is a candidate window [Start, End) together with the tasks whose
// whole window lies inside it.
type Interval struct {
	Start     float64
	End       float64
	Tasks     []model.Task
	Workload  float64
	Intensity float64
}

// NewInterval builds the interval [start, end) over tasks and computes its
// intensity. start must be strictly less than end.
func NewInterval(start, end float64, tasks []model.Task) Interval {
	iv := Interval{Start: start, End: end}
	work := make([]float64, 0, len(tasks))
	for _, t := range tasks {
		if iv.Contains(t) {
			iv.Tasks = append(iv.Tasks, t)
			work = append(work, t.Workload)
		}
	}
	iv.Workload = floats.Sum(work)
	iv.Intensity = iv.Workload / iv.Length()
	return iv
}

// Length returns End - Start.
func (iv Interval) Length() float64 { return iv.End - iv.Start }

// Contains reports whether the task's window lies fully inside the interval.
// Tasks with a collapsed window are never contained.
func (iv Interval) Contains(t model.Task) bool {
	return !t.Degenerate() && t.Release >= iv.Start && t.Deadline <= iv.End
}

// Candidates enumerates every interval bounded by a release time and a
// deadline of the given tasks. Release values form the outer loop and deadline
// values the inner loop, both ascending, which fixes the order ties are
// resolved in by Critical.
func Candidates(tasks []model.Task) []Interval {
	releases, deadlines := boundaries(tasks)
	var out []Interval
	for _, start := range releases {
		out = appendRow(out, start, deadlines, tasks)
	}
	return out
}

// parallelCandidates evaluates one row of candidates per release value on up
// to workers goroutines. The result is identical to Candidates.
func parallelCandidates(tasks []model.Task, workers int) []Interval {
	releases, deadlines := boundaries(tasks)
	rows := make([][]Interval, len(releases))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, start := range releases {
		g.Go(func() error {
			rows[i] = appendRow(nil, start, deadlines, tasks)
			return nil
		})
	}
	// rows never fail; the group only bounds concurrency
	_ = g.Wait()
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	out := make([]Interval, 0, n)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func appendRow(out []Interval, start float64, deadlines []float64, tasks []model.Task) []Interval {
	for _, end := range deadlines {
		if start < end {
			out = append(out, NewInterval(start, end, tasks))
		}
	}
	return out
}

// boundaries returns the distinct release and deadline values of the
// non-degenerate tasks, sorted ascending.
func boundaries(tasks []model.Task) ([]float64, []float64) {
	releases := make([]float64, 0, len(tasks))
	deadlines := make([]float64, 0, len(tasks))
	for _, t := range tasks {
		if t.Degenerate() {
			continue
		}
		releases = append(releases, t.Release)
		deadlines = append(deadlines, t.Deadline)
	}
	return distinct(releases), distinct(deadlines)
}

func distinct(vals []float64) []float64 {
	sort.Float64s(vals)
	out := vals[:0]
	for _, v := range vals {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Critical returns the candidate with the highest intensity. The first
// maximum in candidate order wins.
func Critical(candidates []Interval) (Interval, error) {
	if len(candidates) == 0 {
		return Interval{}, ErrNoCandidates
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Intensity > candidates[best].Intensity {
			best = i
		}
	}
	return candidates[best], nil
}
