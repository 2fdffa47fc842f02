// Package export renders schedules as JSON, CSV or an HTML frequency chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/yds/core/model"
)

// CSVHeader is the first record written by WriteCSV.
var CSVHeader = []string{"task_id", "start", "end", "frequency"}

// WriteJSON writes the executions to w in JSON format.
func WriteJSON(w io.Writer, execs []model.Execution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(execs)
}

// WriteCSV writes the executions to w in CSV format.
func WriteCSV(w io.Writer, execs []model.Execution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range execs {
		rec := []string{
			e.TaskID,
			formatFloat(e.Start),
			formatFloat(e.End),
			formatFloat(e.Frequency),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChart renders the frequency profile of execs as an HTML line chart.
// Each segment contributes its start and end points; gaps between segments
// drop to zero.
func WriteChart(w io.Writer, title string, execs []model.Execution) error {
	xs, ys := profile(execs)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "frequency"}),
	)
	line.SetXAxis(xs).AddSeries("frequency", ys)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// profile expects execs sorted by start.
func profile(execs []model.Execution) ([]string, []opts.LineData) {
	xs := make([]string, 0, 2*len(execs))
	ys := make([]opts.LineData, 0, 2*len(execs))
	for i, e := range execs {
		if i > 0 && e.Start > execs[i-1].End {
			xs = append(xs, formatFloat(execs[i-1].End), formatFloat(e.Start))
			ys = append(ys, opts.LineData{Value: 0}, opts.LineData{Value: 0})
		}
		xs = append(xs, formatFloat(e.Start), formatFloat(e.End))
		ys = append(ys, opts.LineData{Value: e.Frequency}, opts.LineData{Value: e.Frequency})
	}
	return xs, ys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
