// Package store defines the persistence capability shared by the remote store
// and the local mirror, the change-notification feed, and the storage error
// taxonomy.
package store

import (
	"context"

	"github.com/dori/tandem/internal/model"
)

// Backend is the capability every persistence adapter implements.
// Mutations return the definitive stored record, including generated fields.
type Backend interface {
	Projects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, in model.NewProject) (*model.Project, error)
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	Tasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.NewTask) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// ChangeFeed delivers push notifications for a table. Notifications carry no
// payload beyond the table and operation; subscribers refetch.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table Table) (*Subscription, error)
}
