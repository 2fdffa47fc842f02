package logger

import corelogger "github.com/kilianp07/yds/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. Output format and level come
// from the last call to Configure, or from APP_ENV when Configure was never
// called.
func New(component string) Logger {
	return NewZerologLogger(component)
}
