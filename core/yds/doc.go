// Package yds computes energy-minimal schedules for a single processor with
// continuously variable speed.
//
// The scheduler repeatedly extracts the window of maximum intensity (the
// critical interval), runs every task contained in it at exactly that speed in
// earliest-deadline-first order, and then cuts the window out of the
// remaining tasks' timelines. Each task yields exactly one Execution whose
// start and end are mapped back to the original timeline through the task's
// accumulated offset.
package yds
