package monitoring

import (
	"errors"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

// Tagged is implemented by errors carrying diagnostic state.
type Tagged interface {
	Tags() map[string]string
}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Report records err, attaching the tags of the first Tagged error in its
// chain merged with extra.
func Report(err error, extra map[string]string) {
	if err == nil {
		return
	}
	tags := map[string]string{}
	var tagged Tagged
	if errors.As(err, &tagged) {
		for k, v := range tagged.Tags() {
			tags[k] = v
		}
	}
	for k, v := range extra {
		tags[k] = v
	}
	CaptureException(err, tags)
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
