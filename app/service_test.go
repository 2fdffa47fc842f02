package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/config"
	"github.com/kilianp07/yds/core/factory"
	coremetrics "github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/infra/store"
	"github.com/kilianp07/yds/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Scheduler.Verify = true
	cfg.SetDefaults()
	return cfg
}

func TestServiceScheduleAndHistory(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	body := `{"tasks":[{"id":"A","release":5,"deadline":10,"workload":10},{"id":"E","release":8,"deadline":14,"workload":4}]}`
	resp, err := http.Post(srv.URL+"/api/schedule", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Executions, 2)
	assert.Equal(t, "E", res.Executions[1].TaskID)
	assert.InDelta(t, 10.0, res.Executions[1].Start, 1e-9)
	assert.InDelta(t, 14.0, res.Executions[1].End, 1e-9)

	runsResp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer runsResp.Body.Close()
	var list []store.Run
	require.NoError(t, json.NewDecoder(runsResp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, res.RunID, list[0].ID)
	assert.Equal(t, "api", list[0].Source)

	execs, err := svc.Store.Executions(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Executions, execs)
}

func TestServiceHealthAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Path = ""
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	h := svc.Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServiceUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nope"}}
	_, err := New(cfg)
	assert.Error(t, err)
}

var closedSinks atomic.Int32

type closingSink struct{ coremetrics.NopSink }

func (closingSink) Close() error {
	closedSinks.Add(1)
	return nil
}

func TestServiceReleasesSinkOnPartialFailure(t *testing.T) {
	// a second registration under -count fails harmlessly
	_ = coremetrics.RegisterMetricsSink("closing-test", func(map[string]any) (coremetrics.MetricsSink, error) {
		return closingSink{}, nil
	})

	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing-test"}}
	cfg.Cache.Addr = "127.0.0.1:1"
	cfg.Cache.SetDefaults()

	before := closedSinks.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewWithContext(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache")
	assert.Equal(t, before+1, closedSinks.Load())
}

func TestServiceRunStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
