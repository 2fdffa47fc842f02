package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	assert.NoError(t, NewTask("a", 0, 1, 1).Validate())
	assert.Error(t, NewTask("a", 1, 1, 1).Validate())
	assert.Error(t, NewTask("a", 2, 1, 1).Validate())
	assert.Error(t, NewTask("a", 0, 1, 0).Validate())
	assert.Error(t, NewTask("a", 0, math.NaN(), 1).Validate())
	assert.Error(t, NewTask("a", math.Inf(-1), 1, 1).Validate())
}

func TestTaskWindow(t *testing.T) {
	task := NewTask("a", 2, 7, 1)
	assert.Equal(t, 5.0, task.Window())
	assert.False(t, task.Degenerate())
	task.Deadline = 2
	assert.True(t, task.Degenerate())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "t1: 0 - 17, c=5", NewTask("t1", 0, 17, 5).String())
	e := Execution{TaskID: "t8", Start: 0, End: 1.5, Frequency: 2}
	assert.Equal(t, "t8: 0 - 1.5, f=2", e.String())
	assert.Equal(t, 1.5, e.Duration())
	assert.Equal(t, 3.0, e.Work())
}
