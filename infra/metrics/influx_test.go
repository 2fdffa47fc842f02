package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/core/factory"
	coremetrics "github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/core/model"
)

type capture struct {
	mu   sync.Mutex
	body strings.Builder
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.body.Write(data)
		c.body.WriteString("\n")
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body.String()
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordScheduleRun(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	now := time.Unix(1700000000, 0)
	run := coremetrics.ScheduleRun{
		RunID:         "r1",
		Tasks:         2,
		Rounds:        1,
		PeakFrequency: 1,
		Elapsed:       2 * time.Millisecond,
		Time:          now,
		Executions: []model.Execution{
			{TaskID: "A", Start: 0, End: 5, Frequency: 1},
			{TaskID: "B", Start: 5, End: 10, Frequency: 1},
		},
	}
	require.NoError(t, sink.RecordScheduleRun(run))

	body := c.String()
	assert.Contains(t, body, line(write.NewPointWithMeasurement("schedule_run").
		AddTag("run_id", "r1").
		AddField("tasks", 2).
		AddField("rounds", 1).
		AddField("peak_frequency", 1.0).
		AddField("elapsed_ms", 2.0).
		SetTime(now)))
	assert.Contains(t, body, line(write.NewPointWithMeasurement("execution_segment").
		AddTag("run_id", "r1").
		AddTag("task_id", "B").
		AddField("start", 5.0).
		AddField("end", 10.0).
		AddField("frequency", 1.0).
		SetTime(now)))
}

func TestInfluxSink_RecordRoundAndFailure(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	require.NoError(t, sink.RecordRound(coremetrics.RoundEvent{
		RunID: "r1", Round: 1, Start: 14, End: 20, Intensity: 8.0 / 3, TaskIDs: []string{"t6", "t7"}, Candidates: 20, Time: now,
	}))
	require.NoError(t, sink.RecordScheduleFailure(coremetrics.FailureEvent{RunID: "r2", Kind: "invariant", Error: "boom", Time: now}))

	body := c.String()
	assert.Contains(t, body, "critical_interval,")
	assert.Contains(t, body, "round=1")
	assert.Contains(t, body, "run_id=r1")
	assert.Contains(t, body, "intensity=2.666667")
	assert.Contains(t, body, "schedule_failure,")
	assert.Contains(t, body, "kind=invariant")
	assert.Contains(t, body, `error="boom"`)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}

func TestInfluxFactoryDecodesConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "influx", Conf: map[string]any{"url": srv.URL, "org": "o", "bucket": "b"}},
		{Type: "nop"},
	})
	require.NoError(t, err)
	multi, ok := sink.(*coremetrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
}
