package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
)

// begin guards every entry point: it rejects calls after Close and clears the
// previous error
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lastErr = ""
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fail records err as the session error and returns it
func (s *Session) fail(err error) error {
	s.setError(err)
	return err
}

// AddProject creates a project owned by the session user unless in names
// another creator, and puts it at the head of the collection
func (s *Session) AddProject(ctx context.Context, in model.NewProject) (*model.Project, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if in.CreatedBy == "" {
		in.CreatedBy = s.user.ID
	}

	project, err := s.projects.Create(ctx, in)
	if err != nil {
		return nil, s.fail(fmt.Errorf("add project: %w", err))
	}

	if s.replace(func() {
		s.projectList = append([]model.Project{*project}, s.projectList...)
	}) {
		s.persistProjects(ctx)
	}
	return project, nil
}

// UpdateProject merges patch into a project. It returns (nil, nil) when the
// project exists nowhere.
func (s *Session) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	project, err := s.projects.Update(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		s.forgetProject(ctx, id)
	}
	if err != nil {
		return nil, s.fail(fmt.Errorf("update project: %w", err))
	}
	if project == nil {
		s.notify()
		return nil, nil
	}

	if s.replace(func() {
		for i := range s.projectList {
			if s.projectList[i].ID == id {
				s.projectList[i] = *project
			}
		}
	}) {
		s.persistProjects(ctx)
	}
	return project, nil
}

// DeleteProject removes a project and every task that belongs to it
func (s *Session) DeleteProject(ctx context.Context, id string) error {
	if err := s.begin(); err != nil {
		return err
	}

	// already deleted elsewhere counts as done
	if err := s.projects.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.fail(fmt.Errorf("delete project: %w", err))
	}

	s.forgetProject(ctx, id)
	return nil
}

// forgetProject drops a project and its tasks from the collections
func (s *Session) forgetProject(ctx context.Context, id string) {
	if s.replace(func() {
		s.projectList = removeProject(s.projectList, id)
		s.taskList = removeTasks(s.taskList, func(t model.Task) bool { return t.ProjectID == id })
	}) {
		s.persistProjects(ctx)
		s.persistTasks(ctx)
	}
}

// AddTask creates a pending task and puts it at the head of the collection
func (s *Session) AddTask(ctx context.Context, in model.NewTask) (*model.Task, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if in.CreatedBy == "" {
		in.CreatedBy = s.user.ID
	}

	task, err := s.tasks.Create(ctx, in)
	if err != nil {
		return nil, s.fail(fmt.Errorf("add task: %w", err))
	}

	s.insertTask(ctx, task)
	return task, nil
}

// UpdateTask merges patch into a task. Status and the start/complete stamps
// can only change through StartTask and CompleteTask.
func (s *Session) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if patch.TouchesLifecycle() {
		return nil, s.fail(fmt.Errorf("update task: %w", model.ErrLifecycleField))
	}
	return s.applyTask(ctx, "update task", id, patch)
}

// DeleteTask removes a task
func (s *Session) DeleteTask(ctx context.Context, id string) error {
	if err := s.begin(); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.fail(fmt.Errorf("delete task: %w", err))
	}

	s.forgetTask(ctx, id)
	return nil
}

func (s *Session) forgetTask(ctx context.Context, id string) {
	if s.replace(func() {
		s.taskList = removeTasks(s.taskList, func(t model.Task) bool { return t.ID == id })
	}) {
		s.persistTasks(ctx)
	}
}

// StartTask moves a pending task to in-progress on behalf of userID. A task
// in any other status is left alone and model.ErrInvalidTransition returned.
func (s *Session) StartTask(ctx context.Context, id, userID string) (*model.Task, error) {
	return s.transition(ctx, "start task", id, userID, model.StartPatch)
}

// CompleteTask moves an in-progress task to completed on behalf of userID
func (s *Session) CompleteTask(ctx context.Context, id, userID string) (*model.Task, error) {
	return s.transition(ctx, "complete task", id, userID, model.CompletePatch)
}

// AssignTask sets the assignee in any status
func (s *Session) AssignTask(ctx context.Context, id, assignedUserID string) (*model.Task, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s.applyTask(ctx, "assign task", id, model.AssignPatch(assignedUserID))
}

type patchFunc func(t model.Task, userID string, now time.Time) (model.TaskPatch, error)

// transition applies a lifecycle patch. A wrong-status call touches nothing,
// not even the error flag.
func (s *Session) transition(ctx context.Context, op, id, userID string, build patchFunc) (*model.Task, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if userID == "" {
		userID = s.user.ID
	}

	current, ok := s.findTask(id)
	if !ok {
		return nil, s.fail(store.E(op, store.ErrNotFound, fmt.Errorf("task %s", id)))
	}

	patch, err := build(current, userID, s.now().UTC())
	if errors.Is(err, model.ErrInvalidTransition) {
		s.log.Debug("transition ignored", "op", op, "task", id, "status", current.Status)
		return nil, err
	}
	if err != nil {
		return nil, s.fail(err)
	}

	if err := s.begin(); err != nil {
		return nil, err
	}
	return s.applyTask(ctx, op, id, patch)
}

func (s *Session) applyTask(ctx context.Context, op, id string, patch model.TaskPatch) (*model.Task, error) {
	task, err := s.tasks.Update(ctx, id, patch)
	switch {
	case errors.Is(err, model.ErrInvalidTransition):
		// someone else moved the task first; pick up their version
		s.log.Debug("transition refused by store", "op", op, "task", id, "err", err)
		s.refresh(ctx, store.TableTasks)
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		s.forgetTask(ctx, id)
		return nil, s.fail(fmt.Errorf("%s: %w", op, err))
	case err != nil:
		return nil, s.fail(fmt.Errorf("%s: %w", op, err))
	}
	if task == nil {
		s.notify()
		return nil, nil
	}

	if s.replace(func() {
		for i := range s.taskList {
			if s.taskList[i].ID == id {
				s.taskList[i] = *task
			}
		}
	}) {
		s.persistTasks(ctx)
	}
	return task, nil
}

func (s *Session) insertTask(ctx context.Context, task *model.Task) {
	if s.replace(func() {
		s.taskList = append([]model.Task{*task}, s.taskList...)
	}) {
		s.persistTasks(ctx)
	}
}

func (s *Session) findTask(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.taskList {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func removeProject(projects []model.Project, id string) []model.Project {
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func removeTasks(tasks []model.Task, drop func(model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}
