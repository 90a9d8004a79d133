package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidInput is returned when caller-supplied fields break an invariant
	ErrInvalidInput = errors.New("invalid input")

	// ErrLifecycleField is returned when a generic update touches fields that only
	// the lifecycle operations may set
	ErrLifecycleField = errors.New("lifecycle fields can only change through start/complete")
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Priority represents task priority level
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work inside a project
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProjectID   string     `json:"projectId"`
	CreatedBy   string     `json:"createdBy"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	StartedBy   *string    `json:"startedBy,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedBy *string    `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsOverdue returns true if the task is past its due date
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == TaskCompleted {
		return false
	}
	return now.After(*t.DueDate)
}

// PriorityWeight returns a numeric weight for sorting by priority
func (t *Task) PriorityWeight() int {
	switch t.Priority {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// NewTask holds the caller-supplied fields of a task to create
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProjectID   string     `json:"projectId"`
	CreatedBy   string     `json:"createdBy"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Normalize fills defaults: new tasks start pending at medium priority
func (n NewTask) Normalize() NewTask {
	n.Title = strings.TrimSpace(n.Title)
	if n.Status == "" {
		n.Status = TaskPending
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if n.AssignedTo != nil && *n.AssignedTo == "" {
		n.AssignedTo = nil
	}
	return n
}

// Validate checks the input against the task invariants
func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	if n.ProjectID == "" {
		return fmt.Errorf("%w: task must belong to a project", ErrInvalidInput)
	}
	if n.CreatedBy == "" {
		return fmt.Errorf("%w: task creator is required", ErrInvalidInput)
	}
	if n.Status != TaskPending {
		return fmt.Errorf("%w: new tasks must be %s", ErrInvalidInput, TaskPending)
	}
	if !n.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, n.Priority)
	}
	return nil
}

// TaskPatch is a partial update; nil fields are left untouched
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	ProjectID   *string     `json:"projectId,omitempty"`
	AssignedTo  *string     `json:"assignedTo,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	StartedBy   *string     `json:"startedBy,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedBy *string     `json:"completedBy,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`

	// ExpectStatus makes the update conditional: backends apply the patch only
	// while the stored task is still in this status.
	ExpectStatus *TaskStatus `json:"-"`
}

// Empty reports whether the patch changes no column
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ProjectID == nil &&
		p.AssignedTo == nil && p.Priority == nil && p.DueDate == nil &&
		p.Status == nil && p.StartedBy == nil && p.StartedAt == nil &&
		p.CompletedBy == nil && p.CompletedAt == nil
}

// TouchesLifecycle reports whether the patch sets status or start/complete
// stamps, or is conditional on the status
func (p TaskPatch) TouchesLifecycle() bool {
	return p.Status != nil || p.StartedBy != nil || p.StartedAt != nil ||
		p.CompletedBy != nil || p.CompletedAt != nil || p.ExpectStatus != nil
}

// Check reports ErrInvalidTransition when task is not in the expected status
func (p TaskPatch) Check(task Task) error {
	if p.ExpectStatus == nil || task.Status == *p.ExpectStatus {
		return nil
	}
	return fmt.Errorf("%w: task %s is %s, not %s", ErrInvalidTransition, task.ID, task.Status, *p.ExpectStatus)
}

// Unassigns reports whether the patch clears the assignee
func (p TaskPatch) Unassigns() bool {
	return p.AssignedTo != nil && *p.AssignedTo == ""
}

// Validate checks the fields the patch sets
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: task title cannot be blank", ErrInvalidInput)
	}
	if p.ProjectID != nil && *p.ProjectID == "" {
		return fmt.Errorf("%w: task must belong to a project", ErrInvalidInput)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, *p.Status)
	}
	return nil
}

// Apply merges the patch into a copy of task
func (p TaskPatch) Apply(task Task) Task {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.ProjectID != nil {
		task.ProjectID = *p.ProjectID
	}
	if p.Unassigns() {
		task.AssignedTo = nil
	} else if p.AssignedTo != nil {
		task.AssignedTo = stringPtr(*p.AssignedTo)
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.DueDate != nil {
		task.DueDate = timePtr(*p.DueDate)
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.StartedBy != nil {
		task.StartedBy = stringPtr(*p.StartedBy)
	}
	if p.StartedAt != nil {
		task.StartedAt = timePtr(*p.StartedAt)
	}
	if p.CompletedBy != nil {
		task.CompletedBy = stringPtr(*p.CompletedBy)
	}
	if p.CompletedAt != nil {
		task.CompletedAt = timePtr(*p.CompletedAt)
	}
	return task
}

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
