package service

import (
	"context"
	"fmt"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
)

// TaskService is the façade for tasks
type TaskService struct {
	base
}

// NewTaskService composes the remote store and the mirror
func NewTaskService(remote, local store.Backend, opts ...Option) *TaskService {
	return &TaskService{base: newBase(remote, local, opts)}
}

// GetAll returns every task, newest first
func (s *TaskService) GetAll(ctx context.Context) ([]model.Task, error) {
	tasks, err := run(ctx, &s.base, "list tasks",
		func() ([]model.Task, error) { return s.remote.Tasks(ctx) },
		func() ([]model.Task, error) { return s.local.Tasks(ctx) },
	)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Create stores a new task. On the mirror path the id and timestamp are
// generated on the client.
func (s *TaskService) Create(ctx context.Context, in model.NewTask) (*model.Task, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	task, err := run(ctx, &s.base, "create task",
		func() (*model.Task, error) { return s.remote.CreateTask(ctx, in) },
		func() (*model.Task, error) { return s.local.CreateTask(ctx, in) },
	)
	return task, err
}

// Update merges patch into task id. It returns (nil, nil) when the remote
// failed and the mirror has no such task.
func (s *TaskService) Update(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	task, err := run(ctx, &s.base, "update task",
		func() (*model.Task, error) { return s.remote.UpdateTask(ctx, id, patch) },
		func() (*model.Task, error) { return s.local.UpdateTask(ctx, id, patch) },
	)
	return task, err
}

// Delete removes task id
func (s *TaskService) Delete(ctx context.Context, id string) error {
	_, err := run(ctx, &s.base, "delete task",
		discard(func() error { return s.remote.DeleteTask(ctx, id) }),
		discard(func() error { return s.local.DeleteTask(ctx, id) }),
	)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
