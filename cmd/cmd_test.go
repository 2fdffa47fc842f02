package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/core/model"
)

const tasksYAML = `- {id: A, release: 5, deadline: 10, workload: 10}
- {id: D, release: 10, deadline: 20, workload: 2}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	schedFlags = scheduleFlags{inputFormat: "json", format: "json"}
	historyLimit, historyFormat = 20, "csv"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func TestScheduleCommandCSV(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "tasks.yaml", tasksYAML)
	out, err := execute(t, "-c", filepath.Join(dir, "none.yaml"), "schedule", "-i", in, "--format", "csv", "--verify")
	require.NoError(t, err)
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"A", "5", "10", "2"}, recs[1])
	assert.Equal(t, "D", recs[2][0])
	assert.Equal(t, "10", recs[2][1])
	assert.Equal(t, "20", recs[2][2])
}

func TestScheduleCommandJSONFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "tasks.yaml", tasksYAML)
	dst := filepath.Join(dir, "out.json")
	_, err := execute(t, "-c", filepath.Join(dir, "none.yaml"), "schedule", "-i", in, "-o", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	var execs []model.Execution
	require.NoError(t, json.Unmarshal(data, &execs))
	assert.Len(t, execs, 2)
}

func TestScheduleCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "none.yaml")
	bad := writeFile(t, dir, "bad.csv", "A,3,1,1\n")
	_, err := execute(t, "-c", cfgFile, "schedule", "-i", bad)
	assert.ErrorContains(t, err, "invalid task")

	in := writeFile(t, dir, "tasks.yaml", tasksYAML)
	_, err = execute(t, "-c", cfgFile, "schedule", "-i", in, "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "-c", cfgFile, "schedule", "-i", in, "--store")
	assert.ErrorContains(t, err, "store.path")
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yaml", "store:\n  path: "+filepath.Join(dir, "runs.db")+"\n")
	in := writeFile(t, dir, "tasks.yaml", tasksYAML)

	_, err := execute(t, "-c", cfgFile, "schedule", "-i", in, "--store")
	require.NoError(t, err)

	out, err := execute(t, "-c", cfgFile, "history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Fields(lines[1])
	require.NotEmpty(t, fields)
	assert.Contains(t, lines[1], in)

	out, err = execute(t, "-c", cfgFile, "history", fields[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "task_id,start,end,frequency\n"))

	_, err = execute(t, "-c", cfgFile, "history", "missing")
	assert.Error(t, err)
}
