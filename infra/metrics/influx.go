package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/yds/core/metrics"
	"github.com/kilianp07/yds/infra/logger"
)

// InfluxSink writes scheduling runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScheduleRun writes one schedule_run point and one execution_segment
// point per execution.
func (s *InfluxSink) RecordScheduleRun(run coremetrics.ScheduleRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(run.Executions)+1)
	points = append(points, write.NewPointWithMeasurement("schedule_run").
		AddTag("run_id", run.RunID).
		AddField("tasks", run.Tasks).
		AddField("rounds", run.Rounds).
		AddField("peak_frequency", round6(run.PeakFrequency)).
		AddField("elapsed_ms", round6(float64(run.Elapsed)/float64(time.Millisecond))).
		SetTime(run.Time))
	for _, e := range run.Executions {
		points = append(points, write.NewPointWithMeasurement("execution_segment").
			AddTag("run_id", run.RunID).
			AddTag("task_id", e.TaskID).
			AddField("start", round6(e.Start)).
			AddField("end", round6(e.End)).
			AddField("frequency", round6(e.Frequency)).
			SetTime(run.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRound writes a critical_interval point. The round is a tag so the
// rounds of one run form distinct series.
func (s *InfluxSink) RecordRound(ev coremetrics.RoundEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("critical_interval").
		AddTag("run_id", ev.RunID).
		AddTag("round", strconv.Itoa(ev.Round)).
		AddField("start", round6(ev.Start)).
		AddField("end", round6(ev.End)).
		AddField("intensity", round6(ev.Intensity)).
		AddField("tasks", len(ev.TaskIDs)).
		AddField("candidates", ev.Candidates).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordScheduleFailure writes a schedule_failure point.
func (s *InfluxSink) RecordScheduleFailure(ev coremetrics.FailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_failure").
		AddTag("run_id", ev.RunID).
		AddTag("kind", ev.Kind).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
