package yds

import "github.com/kilianp07/yds/core/model"

// Relation classifies how a task window lies relative to an excised interval.
type Relation int

const (
	RelationUnknown Relation = iota
	// RelationAfter: the task starts at or after the interval end.
	RelationAfter
	// RelationBefore: the task ends at or before the interval start.
	RelationBefore
	// RelationSpans: the interval lies strictly inside the task window.
	RelationSpans
	// RelationOverlapsStart: the task covers the interval start only.
	RelationOverlapsStart
	// RelationOverlapsEnd: the task covers the interval end only.
	RelationOverlapsEnd
)

func (r Relation) String() string {
	switch r {
	case RelationAfter:
		return "after"
	case RelationBefore:
		return "before"
	case RelationSpans:
		return "spans"
	case RelationOverlapsStart:
		return "overlaps_start"
	case RelationOverlapsEnd:
		return "overlaps_end"
	default:
		return "unknown"
	}
}

// Classify returns the relation between the task window and [start, end).
// The checks run in a fixed order; a task contained in the interval matches
// none of them.
func Classify(t model.Task, start, end float64) Relation {
	switch {
	case t.Release >= end:
		return RelationAfter
	case t.Deadline <= start:
		return RelationBefore
	case t.Release < start && t.Deadline > end:
		return RelationSpans
	case t.Deadline > start && t.Release < start:
		return RelationOverlapsStart
	case t.Release < end && t.Deadline > end:
		return RelationOverlapsEnd
	}
	return RelationUnknown
}

// Cut returns a copy of t with the interval excised from its timeline.
// Everything after the interval moves back by the interval length; the
// task's offset grows whenever its start is moved so that later placements
// can be mapped back to absolute time.
func Cut(t model.Task, iv Interval) (model.Task, error) {
	distance := iv.Length()
	switch Classify(t, iv.Start, iv.End) {
	case RelationAfter:
		t.Release -= distance
		t.Deadline -= distance
		t.Offset += distance
	case RelationBefore:
	case RelationSpans:
		t.Deadline -= distance
	case RelationOverlapsStart:
		t.Deadline = iv.Start
	case RelationOverlapsEnd:
		t.Offset += distance
		t.Release = iv.Start
		t.Deadline -= distance
	default:
		return t, &InvariantError{Task: t, Interval: iv, Reason: "task window matches no cut case"}
	}
	if t.Release > t.Deadline {
		return t, &InvariantError{Task: t, Interval: iv, Reason: "cut inverted task window"}
	}
	return t, nil
}
