// Package mirror keeps whole-collection JSON snapshots of projects and tasks in
// a key-value store. It is the offline copy the services fall back to.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dori/tandem/internal/kv"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
)

// Snapshot keys
const (
	ProjectsKey = "shared_projects"
	TasksKey    = "shared_tasks"
)

// Mirror is a store.Backend over a kv.Store. Every write rewrites the whole
// collection. Ids and timestamps are generated on the client.
type Mirror struct {
	kv  kv.Store
	ids *store.IDGen
	now func() time.Time
	log *slog.Logger

	// mu makes each read-modify-write of a collection atomic
	mu sync.Mutex
}

var _ store.Backend = (*Mirror)(nil)

// Option configures a Mirror
type Option func(*Mirror)

// WithClock sets the clock used for ids and creation times
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) { m.log = l }
}

// New creates a mirror over s
func New(s kv.Store, opts ...Option) *Mirror {
	m := &Mirror{kv: s, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Component("mirror")
	}
	m.ids = store.NewIDGen(m.now)
	return m
}

// Projects returns the stored project snapshot; a missing snapshot is empty
func (m *Mirror) Projects(ctx context.Context) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadProjects(ctx)
}

// Tasks returns the stored task snapshot; a missing snapshot is empty
func (m *Mirror) Tasks(ctx context.Context) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadTasks(ctx)
}

// SaveProjects overwrites the project snapshot
func (m *Mirror) SaveProjects(ctx context.Context, projects []model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, ProjectsKey, withPlaceholders(projects))
}

// SaveTasks overwrites the task snapshot
func (m *Mirror) SaveTasks(ctx context.Context, tasks []model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tasks == nil {
		tasks = []model.Task{}
	}
	return m.save(ctx, TasksKey, tasks)
}

func (m *Mirror) CreateProject(ctx context.Context, in model.NewProject) (*model.Project, error) {
	const op = "mirror create project"

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, store.E(op, store.ErrValidation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	projects, err := m.loadProjects(ctx)
	if err != nil {
		return nil, err
	}

	p := model.Project{
		ID:          m.ids.Next(),
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   m.now().UTC(),
		Tasks:       []model.Task{},
	}

	if err := m.save(ctx, ProjectsKey, append([]model.Project{p}, projects...)); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *Mirror) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	const op = "mirror update project"

	if err := patch.Validate(); err != nil {
		return nil, store.E(op, store.ErrValidation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	projects, err := m.loadProjects(ctx)
	if err != nil {
		return nil, err
	}

	for i := range projects {
		if projects[i].ID != id {
			continue
		}
		updated := patch.Apply(projects[i])
		projects[i] = updated
		if err := m.save(ctx, ProjectsKey, projects); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, store.E(op, store.ErrNotFound, fmt.Errorf("project %s", id))
}

func (m *Mirror) DeleteProject(ctx context.Context, id string) error {
	const op = "mirror delete project"

	m.mu.Lock()
	defer m.mu.Unlock()

	projects, err := m.loadProjects(ctx)
	if err != nil {
		return err
	}

	kept := projects[:0]
	for _, p := range projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(projects) {
		return store.E(op, store.ErrNotFound, fmt.Errorf("project %s", id))
	}
	return m.save(ctx, ProjectsKey, kept)
}

func (m *Mirror) CreateTask(ctx context.Context, in model.NewTask) (*model.Task, error) {
	const op = "mirror create task"

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, store.E(op, store.ErrValidation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.loadTasks(ctx)
	if err != nil {
		return nil, err
	}

	t := model.Task{
		ID:          m.ids.Next(),
		Title:       in.Title,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		CreatedBy:   in.CreatedBy,
		AssignedTo:  in.AssignedTo,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		CreatedAt:   m.now().UTC(),
	}

	if err := m.save(ctx, TasksKey, append([]model.Task{t}, tasks...)); err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *Mirror) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	const op = "mirror update task"

	if err := patch.Validate(); err != nil {
		return nil, store.E(op, store.ErrValidation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.loadTasks(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		if err := patch.Check(tasks[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		updated := patch.Apply(tasks[i])
		tasks[i] = updated
		if err := m.save(ctx, TasksKey, tasks); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, store.E(op, store.ErrNotFound, fmt.Errorf("task %s", id))
}

func (m *Mirror) DeleteTask(ctx context.Context, id string) error {
	const op = "mirror delete task"

	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.loadTasks(ctx)
	if err != nil {
		return err
	}

	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return store.E(op, store.ErrNotFound, fmt.Errorf("task %s", id))
	}
	return m.save(ctx, TasksKey, kept)
}

func (m *Mirror) loadProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := m.load(ctx, ProjectsKey, &projects); err != nil {
		return nil, err
	}
	return withPlaceholders(projects), nil
}

func (m *Mirror) loadTasks(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	if err := m.load(ctx, TasksKey, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (m *Mirror) load(ctx context.Context, key string, dest any) error {
	raw, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (m *Mirror) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := m.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	m.log.Debug("snapshot written", "key", key, "bytes", len(data))
	return nil
}

// withPlaceholders gives every project a non-nil tasks slice so the stored
// JSON always carries "tasks": []
func withPlaceholders(projects []model.Project) []model.Project {
	out := make([]model.Project, len(projects))
	for i, p := range projects {
		if p.Tasks == nil {
			p.Tasks = []model.Task{}
		}
		out[i] = p
	}
	return out
}
