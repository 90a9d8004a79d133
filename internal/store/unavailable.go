package store

import (
	"context"

	"github.com/dori/tandem/internal/model"
)

// Unavailable is the remote store used when no hosted backend is configured.
// Every call fails with ErrConfiguration so callers degrade to the mirror.
type Unavailable struct {
	Reason string
}

var (
	_ Backend    = Unavailable{}
	_ ChangeFeed = Unavailable{}
)

func (u Unavailable) err(op string) error {
	return &Error{Op: op, Kind: ErrConfiguration, Err: reason(u.Reason)}
}

type reason string

func (r reason) Error() string {
	if r == "" {
		return "remote store disabled"
	}
	return string(r)
}

func (u Unavailable) Projects(context.Context) ([]model.Project, error) {
	return nil, u.err("list projects")
}

func (u Unavailable) CreateProject(context.Context, model.NewProject) (*model.Project, error) {
	return nil, u.err("create project")
}

func (u Unavailable) UpdateProject(context.Context, string, model.ProjectPatch) (*model.Project, error) {
	return nil, u.err("update project")
}

func (u Unavailable) DeleteProject(context.Context, string) error {
	return u.err("delete project")
}

func (u Unavailable) Tasks(context.Context) ([]model.Task, error) {
	return nil, u.err("list tasks")
}

func (u Unavailable) CreateTask(context.Context, model.NewTask) (*model.Task, error) {
	return nil, u.err("create task")
}

func (u Unavailable) UpdateTask(context.Context, string, model.TaskPatch) (*model.Task, error) {
	return nil, u.err("update task")
}

func (u Unavailable) DeleteTask(context.Context, string) error {
	return u.err("delete task")
}

// Subscribe returns an inert subscription; there is nothing to listen to
func (u Unavailable) Subscribe(context.Context, Table) (*Subscription, error) {
	return Inert(), nil
}
