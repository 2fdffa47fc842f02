package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/core/yds"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/internal/pipeline"
)

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context, string, []model.Task) (*pipeline.Result, error) {
	return nil, f.err
}

func newRunner() Runner {
	return pipeline.NewRunner(pipeline.RunnerOptions{Verify: true, Logger: logger.NopLogger{}})
}

func post(t *testing.T, h http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewBufferString(body))
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestScheduleHandler(t *testing.T) {
	h := NewHandler(newRunner(), "")
	rr := post(t, h, `{"tasks":[{"id":"A","release":5,"deadline":10,"workload":10},{"id":"D","release":10,"deadline":20,"workload":2}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Executions, 2)
	assert.Equal(t, model.Execution{TaskID: "A", Start: 5, End: 10, Frequency: 2}, res.Executions[0])
	assert.Equal(t, "D", res.Executions[1].TaskID)
	assert.Equal(t, 2, res.Summary.Segments)
}

func TestScheduleHandlerErrors(t *testing.T) {
	h := NewHandler(newRunner(), "")

	rr := post(t, h, `{"tasks":[{"id":"A","release":5,"deadline":1,"workload":10}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &er))
	assert.Equal(t, "invalid_task", er.Kind)

	rr = post(t, h, `{"tasks":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(t, h, `{"jobs":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestScheduleHandlerInvariant(t *testing.T) {
	h := NewHandler(failingRunner{err: &yds.InvariantError{Reason: "broken"}}, "")
	rr := post(t, h, `{"tasks":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "invariant")
}

func TestScheduleHandlerVerifyFailure(t *testing.T) {
	err := fmt.Errorf("%w: task %q executed twice", yds.ErrScheduleMismatch, "A")
	h := NewHandler(failingRunner{err: err}, "")
	rr := post(t, h, `{"tasks":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &er))
	assert.Equal(t, "verify", er.Kind)
	assert.Contains(t, er.Error, "executed twice")
}

func TestScheduleHandlerReportsDepartures(t *testing.T) {
	h := NewHandler(newRunner(), "")
	rr := post(t, h, `{"tasks":[
		{"id":"1","release":3,"deadline":6,"workload":5},
		{"id":"2","release":2,"deadline":6,"workload":3},
		{"id":"3","release":0,"deadline":8,"workload":2},
		{"id":"4","release":6,"deadline":14,"workload":6},
		{"id":"5","release":10,"deadline":14,"workload":6},
		{"id":"6","release":11,"deadline":17,"workload":2},
		{"id":"7","release":12,"deadline":17,"workload":2}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Len(t, res.Executions, 7)
	assert.Equal(t, 4, res.Rounds)
	assert.Equal(t, 1, res.Departures)
}

func TestScheduleHandlerAuth(t *testing.T) {
	h := NewHandler(newRunner(), "secret")
	rr := post(t, h, `{"tasks":[]}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(t, h, `{"tasks":[]}`, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rr.Code)
}
