// Package taskio decodes task sets from JSON, YAML or CSV sources.
package taskio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/yds/core/model"
)

// Format identifies a task file encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

// ErrUnknownFormat is returned for an unsupported encoding.
var ErrUnknownFormat = errors.New("unknown task format")

var csvHeader = []string{"id", "release", "deadline", "workload"}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".csv":
		return CSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads the task file at path.
func Load(path string) ([]model.Task, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Decode(r, f)
}

// Decode reads tasks encoded as f from r. Tasks are returned as read;
// validation is left to the scheduler.
func Decode(r io.Reader, f Format) ([]model.Task, error) {
	switch f {
	case JSON:
		var tasks []model.Task
		if err := json.NewDecoder(r).Decode(&tasks); err != nil {
			return nil, fmt.Errorf("decode json tasks: %w", err)
		}
		return tasks, nil
	case YAML:
		var tasks []model.Task
		if err := yaml.NewDecoder(r).Decode(&tasks); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("decode yaml tasks: %w", err)
		}
		return tasks, nil
	case CSV:
		return decodeCSV(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func decodeCSV(r io.Reader) ([]model.Task, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv tasks: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if strings.EqualFold(recs[0][0], csvHeader[0]) {
		recs = recs[1:]
	}
	tasks := make([]model.Task, 0, len(recs))
	for i, rec := range recs {
		var vals [3]float64
		for j := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv row %d: %s: %w", i+1, csvHeader[j+1], err)
			}
			vals[j] = v
		}
		tasks = append(tasks, model.NewTask(strings.TrimSpace(rec[0]), vals[0], vals[1], vals[2]))
	}
	return tasks, nil
}
