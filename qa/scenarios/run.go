package scenarios

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/core/yds"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/infra/metrics"
	"github.com/kilianp07/yds/internal/eventbus"
)

const tolerance = 1e-9

// RunScenario schedules the scenario tasks and checks the result against the
// expectations, including the rounds seen by the metrics sink and the bus.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	bus := eventbus.NewTyped[coremetrics.RoundEvent]()
	defer bus.Close()
	sub := bus.SubscribeBuffered(len(sc.Tasks) + 1)

	tasks := sc.ModelTasks()
	sched := yds.New(
		yds.WithWorkers(sc.Workers),
		yds.WithRunID(sc.Name),
		yds.WithRoundRecorder(sink),
		yds.WithEventBus(bus),
		yds.WithLogger(logger.NopLogger{}),
	)
	plan, err := sched.Schedule(tasks)
	require.NoError(t, err)
	require.NoError(t, yds.Verify(tasks, plan.Executions, tolerance))

	assert.Equal(t, sc.Expected.Rounds, plan.Rounds, "rounds")
	assert.Len(t, yds.Overlaps(plan.Executions, tolerance), sc.Expected.Overlaps, "overlaps")
	assert.Len(t, yds.WindowDepartures(tasks, plan.Executions, tolerance), sc.Expected.Departures, "window departures")
	require.Len(t, plan.Executions, len(sc.Expected.Executions))
	for i, want := range sc.Expected.Executions {
		got := plan.Executions[i]
		assert.Equal(t, want.TaskID, got.TaskID, "execution %d", i)
		assert.InDelta(t, want.Start, got.Start, tolerance, "start of %s", want.TaskID)
		assert.InDelta(t, want.End, got.End, tolerance, "end of %s", want.TaskID)
		assert.InDelta(t, want.Frequency, got.Frequency, tolerance, "frequency of %s", want.TaskID)
	}

	assert.Equal(t, uint64(plan.Rounds), intensitySamples(t, reg), "intensity samples")
	assert.Len(t, sub, plan.Rounds, "round events")
}

func intensitySamples(t *testing.T, g prometheus.Gatherer) uint64 {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "yds_critical_interval_intensity" && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}
