package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, project_id, created_by, assigned_to,
	started_by, started_at, completed_by, completed_at, status, priority, due_date, created_at`

// Tasks returns all tasks, newest first
func (s *Store) Tasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, classify("list tasks", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Task, error) {
		t, err := scanTask(row)
		if err != nil {
			return model.Task{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, classify("list tasks", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Task returns a single task by ID
func (s *Store) Task(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get task", err)
	}
	return t, nil
}

// CreateTask inserts a task; the database assigns id and created_at
func (s *Store) CreateTask(ctx context.Context, in model.NewTask) (*model.Task, error) {
	in = in.Normalize()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, project_id, created_by, assigned_to, status, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+taskColumns,
		in.Title, in.Description, in.ProjectID, in.CreatedBy, in.AssignedTo,
		string(in.Status), string(in.Priority), in.DueDate)

	t, err := scanTask(row)
	if err != nil {
		return nil, classify("create task", err)
	}
	return t, nil
}

// UpdateTask merges patch into the stored task
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return s.Task(ctx, id)
	}

	set := newSetList()
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.ProjectID != nil {
		set.add("project_id", *patch.ProjectID)
	}
	if patch.Unassigns() {
		set.add("assigned_to", nil)
	} else if patch.AssignedTo != nil {
		set.add("assigned_to", *patch.AssignedTo)
	}
	if patch.Priority != nil {
		set.add("priority", string(*patch.Priority))
	}
	if patch.DueDate != nil {
		set.add("due_date", *patch.DueDate)
	}
	if patch.Status != nil {
		set.add("status", string(*patch.Status))
	}
	if patch.StartedBy != nil {
		set.add("started_by", *patch.StartedBy)
	}
	if patch.StartedAt != nil {
		set.add("started_at", *patch.StartedAt)
	}
	if patch.CompletedBy != nil {
		set.add("completed_by", *patch.CompletedBy)
	}
	if patch.CompletedAt != nil {
		set.add("completed_at", *patch.CompletedAt)
	}

	where := fmt.Sprintf("id = $%d", set.next())
	args := append(set.args, id)
	if patch.ExpectStatus != nil {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, string(*patch.ExpectStatus))
	}

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE %s RETURNING %s`,
		set.clause(), where, taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) && patch.ExpectStatus != nil {
		return nil, s.failedPrecondition(ctx, id, patch)
	}
	if err != nil {
		return nil, classify("update task", err)
	}
	return t, nil
}

// failedPrecondition explains a conditional update that matched no row
func (s *Store) failedPrecondition(ctx context.Context, id string, patch model.TaskPatch) error {
	current, err := s.Task(ctx, id)
	if err != nil {
		return err
	}
	if err := patch.Check(*current); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return fmt.Errorf("update task %s: %w", id, model.ErrInvalidTransition)
}

// DeleteTask removes a task
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return classify("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return store.E("delete task", store.ErrNotFound, fmt.Errorf("task %s", id))
	}
	return nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var status, priority string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.CreatedBy, &t.AssignedTo,
		&t.StartedBy, &t.StartedAt, &t.CompletedBy, &t.CompletedAt,
		&status, &priority, &t.DueDate, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	t.Priority = model.Priority(priority)
	t.CreatedAt = t.CreatedAt.UTC()
	t.StartedAt = utc(t.StartedAt)
	t.CompletedAt = utc(t.CompletedAt)
	t.DueDate = utc(t.DueDate)
	return &t, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
