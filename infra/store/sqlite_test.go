package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/yds/core/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "yds.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	older := Run{ID: "r1", CreatedAt: time.Unix(100, 0), Source: "a.csv", Tasks: 1, Rounds: 1, PeakFrequency: 0.5}
	newer := Run{ID: "r2", CreatedAt: time.Unix(200, 0), Source: "b.json", Tasks: 2, Rounds: 1, PeakFrequency: 1}
	require.NoError(t, st.Save(ctx, older, []model.Execution{{TaskID: "A", Start: 0, End: 10, Frequency: 0.5}}))
	execs := []model.Execution{
		{TaskID: "A", Start: 0, End: 5, Frequency: 1},
		{TaskID: "B", Start: 5, End: 10, Frequency: 1},
	}
	require.NoError(t, st.Save(ctx, newer, execs))

	runs, err := st.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "b.json", runs[0].Source)
	assert.True(t, runs[0].CreatedAt.Equal(newer.CreatedAt))

	limited, err := st.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := st.Executions(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, execs, got)
}

func TestSQLiteStoreUnknownRun(t *testing.T) {
	st, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	_, err = st.Executions(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStoreDuplicateRun(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	run := Run{ID: "dup", CreatedAt: time.Now()}
	require.NoError(t, st.Save(ctx, run, nil))
	assert.Error(t, st.Save(ctx, run, nil))

	got, err := st.Executions(ctx, "dup")
	require.NoError(t, err)
	assert.Empty(t, got)
}
