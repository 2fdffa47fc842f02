package taskio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/core/model"
)

var want = []model.Task{
	{ID: "A", Release: 0, Deadline: 10, Workload: 5},
	{ID: "B", Release: 2.5, Deadline: 6, Workload: 1.5},
}

func TestDecodeJSON(t *testing.T) {
	in := `[{"id":"A","release":0,"deadline":10,"workload":5},{"id":"B","release":2.5,"deadline":6,"workload":1.5}]`
	got, err := Decode(strings.NewReader(in), JSON)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeYAML(t *testing.T) {
	in := "- id: A\n  release: 0\n  deadline: 10\n  workload: 5\n- id: B\n  release: 2.5\n  deadline: 6\n  workload: 1.5\n"
	got, err := Decode(strings.NewReader(in), YAML)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	empty, err := Decode(strings.NewReader(""), YAML)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeCSV(t *testing.T) {
	in := "id,release,deadline,workload\nA,0,10,5\nB, 2.5, 6, 1.5\n"
	got, err := Decode(strings.NewReader(in), CSV)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	headless, err := Decode(strings.NewReader("A,0,10,5\n"), CSV)
	require.NoError(t, err)
	assert.Equal(t, want[:1], headless)
}

func TestDecodeCSVErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("A,0,x,5\n"), CSV)
	assert.ErrorContains(t, err, "deadline")

	_, err = Decode(strings.NewReader("A,0,10\n"), CSV)
	assert.Error(t, err)
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := Decode(strings.NewReader(""), Format("toml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yml")
	require.NoError(t, os.WriteFile(path, []byte("- {id: A, release: 0, deadline: 10, workload: 5}\n"), 0o600))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want[:1], got)

	_, err = Load(filepath.Join(dir, "tasks.txt"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
