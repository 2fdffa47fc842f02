// Package metrics defines the recorder interfaces used to observe scheduling
// runs. Sinks like PromSink and InfluxSink record completed runs, individual
// critical-interval rounds and failures, and can be combined with
// NewMultiSink. NewMetricsSink builds a MultiSink automatically when several
// sinks are configured.
package metrics
