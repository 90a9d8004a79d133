package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingTask() Task {
	return Task{
		ID:        "t1",
		Title:     "Write brief",
		ProjectID: "p1",
		CreatedBy: "1",
		Status:    TaskPending,
		Priority:  PriorityHigh,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStartPatch(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	patch, err := StartPatch(pendingTask(), "2", now)
	require.NoError(t, err)

	started := patch.Apply(pendingTask())
	assert.Equal(t, TaskInProgress, started.Status)
	require.NotNil(t, started.StartedBy)
	assert.Equal(t, "2", *started.StartedBy)
	require.NotNil(t, started.StartedAt)
	assert.True(t, started.StartedAt.Equal(now))
	assert.Nil(t, started.CompletedBy)
	assert.Nil(t, started.CompletedAt)
}

func TestStartPatchRejectsNonPending(t *testing.T) {
	for _, status := range []TaskStatus{TaskInProgress, TaskCompleted} {
		task := pendingTask()
		task.Status = status

		patch, err := StartPatch(task, "2", time.Now())
		assert.ErrorIs(t, err, ErrInvalidTransition, status)
		assert.True(t, patch.Empty(), status)
	}
}

func TestCompletePatch(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	task := pendingTask()

	start, err := StartPatch(task, "1", now)
	require.NoError(t, err)
	task = start.Apply(task)

	done, err := CompletePatch(task, "2", now.Add(time.Hour))
	require.NoError(t, err)
	task = done.Apply(task)

	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, "1", *task.StartedBy)
	assert.Equal(t, "2", *task.CompletedBy)
	assert.True(t, task.CompletedAt.Equal(now.Add(time.Hour)))
}

func TestCompletePatchRejectsNonInProgress(t *testing.T) {
	for _, status := range []TaskStatus{TaskPending, TaskCompleted} {
		task := pendingTask()
		task.Status = status

		_, err := CompletePatch(task, "2", time.Now())
		assert.ErrorIs(t, err, ErrInvalidTransition, status)
	}
}

func TestAssignPatchLeavesStatusAlone(t *testing.T) {
	task := pendingTask()
	task.Status = TaskCompleted

	patch := AssignPatch("2")
	assert.False(t, patch.TouchesLifecycle())

	assigned := patch.Apply(task)
	assert.Equal(t, TaskCompleted, assigned.Status)
	assert.Equal(t, "2", *assigned.AssignedTo)
}

func TestLifecyclePatchesCarryTheirPrecondition(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	task := pendingTask()

	start, err := StartPatch(task, "1", now)
	require.NoError(t, err)
	require.NotNil(t, start.ExpectStatus)
	assert.Equal(t, TaskPending, *start.ExpectStatus)
	assert.NoError(t, start.Check(task))

	// Someone else already completed the task
	task.Status = TaskCompleted
	assert.ErrorIs(t, start.Check(task), ErrInvalidTransition)

	task.Status = TaskInProgress
	done, err := CompletePatch(task, "2", now)
	require.NoError(t, err)
	assert.NoError(t, done.Check(task))
	task.Status = TaskPending
	assert.ErrorIs(t, done.Check(task), ErrInvalidTransition)

	assert.NoError(t, AssignPatch("2").Check(task))
}

func TestAssignEmptyUnassigns(t *testing.T) {
	task := pendingTask()
	task = AssignPatch("2").Apply(task)
	require.NotNil(t, task.AssignedTo)

	unassign := AssignPatch("")
	assert.True(t, unassign.Unassigns())
	assert.False(t, AssignPatch("2").Unassigns())
	assert.Nil(t, unassign.Apply(task).AssignedTo)
}
