// Package scenarios replays YAML described task sets through the scheduler
// and compares the outcome with the recorded schedule.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/yds/core/model"
)

type TaskDef struct {
	ID       string  `yaml:"id"`
	Release  float64 `yaml:"release"`
	Deadline float64 `yaml:"deadline"`
	Workload float64 `yaml:"workload"`
}

func (t TaskDef) ToModel() model.Task {
	return model.NewTask(t.ID, t.Release, t.Deadline, t.Workload)
}

type ExecutionDef struct {
	TaskID    string  `yaml:"task_id"`
	Start     float64 `yaml:"start"`
	End       float64 `yaml:"end"`
	Frequency float64 `yaml:"frequency"`
}

type Expected struct {
	Rounds     int            `yaml:"rounds"`
	Overlaps   int            `yaml:"overlaps"`
	Departures int            `yaml:"departures"`
	Executions []ExecutionDef `yaml:"executions"`
}

type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Workers     int       `yaml:"workers,omitempty"`
	Tasks       []TaskDef `yaml:"tasks"`
	Expected    Expected  `yaml:"expected"`
}

func (s Scenario) ModelTasks() []model.Task {
	out := make([]model.Task, len(s.Tasks))
	for i, t := range s.Tasks {
		out[i] = t.ToModel()
	}
	return out
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
