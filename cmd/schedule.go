package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/yds/app"
	"github.com/kilianp07/yds/core/model"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/pkg/export"
	"github.com/kilianp07/yds/pkg/taskio"
)

type scheduleFlags struct {
	input       string
	inputFormat string
	output      string
	format      string
	verify      bool
	store       bool
	publish     bool
	noCache     bool
	workers     int
}

var schedFlags scheduleFlags

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute the energy-minimal schedule of a task file",
	Example: `  yds schedule -i tasks.yaml
  yds schedule -i tasks.csv --format html -o schedule.html
  cat tasks.json | yds schedule -i - --verify --store`,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVarP(&schedFlags.input, "input", "i", "", "task file (.json, .yaml, .csv) or - for stdin")
	f.StringVar(&schedFlags.inputFormat, "input-format", "json", "format of stdin input: json, yaml or csv")
	f.StringVarP(&schedFlags.output, "output", "o", "", "output file, stdout when empty")
	f.StringVar(&schedFlags.format, "format", "json", "output format: json, csv or html")
	f.BoolVar(&schedFlags.verify, "verify", false, "check the schedule against the input")
	f.BoolVar(&schedFlags.store, "store", false, "persist the run in the configured store")
	f.BoolVar(&schedFlags.publish, "publish", false, "publish the run on the configured MQTT broker")
	f.BoolVar(&schedFlags.noCache, "no-cache", false, "ignore the configured schedule cache")
	f.IntVar(&schedFlags.workers, "workers", 0, "parallel candidate evaluation, overrides the configuration")
	_ = scheduleCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := readTasks(cmd.InOrStdin(), schedFlags.input, schedFlags.inputFormat)
	if err != nil {
		return err
	}
	write, err := writerFor(schedFlags.format)
	if err != nil {
		return err
	}

	c := *cfg
	if schedFlags.verify {
		c.Scheduler.Verify = true
	}
	if schedFlags.workers > 0 {
		c.Scheduler.Workers = schedFlags.workers
	}
	if !schedFlags.store {
		c.Store.Path = ""
	} else if !c.Store.Enabled() {
		return fmt.Errorf("--store requires store.path in the configuration")
	}
	if !schedFlags.publish {
		c.MQTT.Broker = ""
	} else if c.MQTT.Broker == "" {
		return fmt.Errorf("--publish requires mqtt.broker in the configuration")
	}

	if schedFlags.noCache {
		c.Cache.Addr = ""
	}

	svc, err := app.NewWithContext(ctx, &c)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("schedule").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Runner.Run(ctx, schedFlags.input, tasks)
	if res == nil {
		return err
	}
	out := cmd.OutOrStdout()
	if schedFlags.output != "" {
		f, ferr := os.Create(schedFlags.output)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		out = f
	}
	if werr := write(out, res.Executions); werr != nil {
		return fmt.Errorf("write schedule: %w", werr)
	}
	return err
}

func readTasks(stdin io.Reader, input, format string) ([]model.Task, error) {
	if input == "-" {
		return taskio.Decode(stdin, taskio.Format(format))
	}
	return taskio.Load(input)
}

func writerFor(format string) (func(io.Writer, []model.Execution) error, error) {
	switch format {
	case "json":
		return export.WriteJSON, nil
	case "csv":
		return export.WriteCSV, nil
	case "html":
		return func(w io.Writer, execs []model.Execution) error {
			return export.WriteChart(w, "Schedule", execs)
		}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
