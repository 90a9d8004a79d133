package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a lifecycle operation does not apply to
// the task's current status
var ErrInvalidTransition = errors.New("invalid status transition")

func expect(s TaskStatus) *TaskStatus { return &s }

// StartPatch moves a pending task to in-progress, stamping who started it and when.
// Any user may start any pending task.
func StartPatch(t Task, userID string, now time.Time) (TaskPatch, error) {
	if t.Status != TaskPending {
		return TaskPatch{}, fmt.Errorf("%w: cannot start %s task %s", ErrInvalidTransition, t.Status, t.ID)
	}
	status := TaskInProgress
	return TaskPatch{
		Status:       &status,
		StartedBy:    &userID,
		StartedAt:    &now,
		ExpectStatus: expect(TaskPending),
	}, nil
}

// CompletePatch moves an in-progress task to completed.
// Any user may complete any in-progress task.
func CompletePatch(t Task, userID string, now time.Time) (TaskPatch, error) {
	if t.Status != TaskInProgress {
		return TaskPatch{}, fmt.Errorf("%w: cannot complete %s task %s", ErrInvalidTransition, t.Status, t.ID)
	}
	status := TaskCompleted
	return TaskPatch{
		Status:       &status,
		CompletedBy:  &userID,
		CompletedAt:  &now,
		ExpectStatus: expect(TaskInProgress),
	}, nil
}

// AssignPatch sets the assignee; it is valid in every status. An empty id
// leaves the task unassigned.
func AssignPatch(assignedUserID string) TaskPatch {
	return TaskPatch{AssignedTo: &assignedUserID}
}
