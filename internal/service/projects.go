package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
)

// ProjectService is the façade for projects. Deleting a project deletes its
// tasks through the TaskService first.
type ProjectService struct {
	base
	tasks *TaskService
}

// NewProjectService composes the remote store and the mirror
func NewProjectService(remote, local store.Backend, tasks *TaskService, opts ...Option) *ProjectService {
	return &ProjectService{base: newBase(remote, local, opts), tasks: tasks}
}

// GetAll returns every project, newest first
func (s *ProjectService) GetAll(ctx context.Context) ([]model.Project, error) {
	projects, err := run(ctx, &s.base, "list projects",
		func() ([]model.Project, error) { return s.remote.Projects(ctx) },
		func() ([]model.Project, error) { return s.local.Projects(ctx) },
	)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []model.Project{}
	}
	for i := range projects {
		withPlaceholder(&projects[i])
	}
	return projects, nil
}

// Create stores a new project
func (s *ProjectService) Create(ctx context.Context, in model.NewProject) (*model.Project, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	project, err := run(ctx, &s.base, "create project",
		func() (*model.Project, error) { return s.remote.CreateProject(ctx, in) },
		func() (*model.Project, error) { return s.local.CreateProject(ctx, in) },
	)
	if err != nil {
		return nil, err
	}
	withPlaceholder(project)
	return project, nil
}

// Update merges patch into project id. It returns (nil, nil) when the remote
// failed and the mirror has no such project.
func (s *ProjectService) Update(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	project, err := run(ctx, &s.base, "update project",
		func() (*model.Project, error) { return s.remote.UpdateProject(ctx, id, patch) },
		func() (*model.Project, error) { return s.local.UpdateProject(ctx, id, patch) },
	)
	if err != nil {
		return nil, err
	}
	withPlaceholder(project)
	return project, nil
}

// Delete removes the project's tasks one by one, then the project itself.
// The first failure aborts.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	tasks, err := s.tasks.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("delete project %s: list tasks: %w", id, err)
	}

	for _, t := range tasks {
		if t.ProjectID != id {
			continue
		}
		if err := s.tasks.Delete(ctx, t.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("delete project %s: %w", id, err)
		}
	}

	_, err = run(ctx, &s.base, "delete project",
		discard(func() error { return s.remote.DeleteProject(ctx, id) }),
		discard(func() error { return s.local.DeleteProject(ctx, id) }),
	)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

func withPlaceholder(p *model.Project) {
	if p != nil && p.Tasks == nil {
		p.Tasks = []model.Task{}
	}
}
