package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/google/uuid"
)

const taskColumns = `id, title, description, project_id, created_by, assigned_to,
	started_by, started_at, completed_by, completed_at, status, priority, due_date, created_at`

// Tasks returns all tasks, newest first
func (db *DB) Tasks(ctx context.Context) ([]model.Task, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	defer rows.Close()

	return scanTasks("list tasks", rows)
}

// Task returns a single task by ID
func (db *DB) Task(ctx context.Context, id string) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, classify("get task", err)
	}
	return t, nil
}

// CreateTask inserts a task, generating its id and creation time
func (db *DB) CreateTask(ctx context.Context, in model.NewTask) (*model.Task, error) {
	in = in.Normalize()

	row := db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, title, description, project_id, created_by, assigned_to,
		                   status, priority, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+taskColumns,
		uuid.New().String(), in.Title, in.Description, in.ProjectID, in.CreatedBy,
		in.AssignedTo, in.Status, in.Priority, optionalTime(in.DueDate), db.timestamp())

	t, err := scanTask(row)
	if err != nil {
		return nil, classify("create task", err)
	}

	db.hub.Publish(store.Event{Table: store.TableTasks, Op: store.OpInsert})
	return t, nil
}

// UpdateTask merges patch into the stored task
func (db *DB) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return db.Task(ctx, id)
	}

	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.ProjectID != nil {
		set("project_id", *patch.ProjectID)
	}
	if patch.Unassigns() {
		set("assigned_to", nil)
	} else if patch.AssignedTo != nil {
		set("assigned_to", *patch.AssignedTo)
	}
	if patch.Priority != nil {
		set("priority", *patch.Priority)
	}
	if patch.DueDate != nil {
		set("due_date", optionalTime(patch.DueDate))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.StartedBy != nil {
		set("started_by", *patch.StartedBy)
	}
	if patch.StartedAt != nil {
		set("started_at", optionalTime(patch.StartedAt))
	}
	if patch.CompletedBy != nil {
		set("completed_by", *patch.CompletedBy)
	}
	if patch.CompletedAt != nil {
		set("completed_at", optionalTime(patch.CompletedAt))
	}
	where := "id = ?"
	args = append(args, id)
	if patch.ExpectStatus != nil {
		where += " AND status = ?"
		args = append(args, string(*patch.ExpectStatus))
	}

	row := db.QueryRowContext(ctx, `
		UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE `+where+`
		RETURNING `+taskColumns, args...)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) && patch.ExpectStatus != nil {
		return nil, db.failedPrecondition(ctx, id, patch)
	}
	if err != nil {
		return nil, classify("update task", err)
	}

	db.hub.Publish(store.Event{Table: store.TableTasks, Op: store.OpUpdate})
	return t, nil
}

// failedPrecondition explains a conditional update that matched no row: the
// task is either gone or no longer in the expected status
func (db *DB) failedPrecondition(ctx context.Context, id string, patch model.TaskPatch) error {
	current, err := db.Task(ctx, id)
	if err != nil {
		return err
	}
	if err := patch.Check(*current); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	// Lost a race with a concurrent writer
	return fmt.Errorf("update task %s: %w", id, model.ErrInvalidTransition)
}

// DeleteTask deletes a task
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return classify("delete task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.E("delete task", store.ErrNotFound, nil)
	}

	db.hub.Publish(store.Event{Table: store.TableTasks, Op: store.OpDelete})
	return nil
}

// Helper functions

type scanner interface {
	Scan(dest ...interface{}) error
}

type rowsScanner interface {
	scanner
	Next() bool
	Err() error
}

func scanTasks(op string, rows rowsScanner) ([]model.Task, error) {
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return tasks, nil
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var startedAt, completedAt, dueDate *string
	var createdAt string

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.CreatedBy, &t.AssignedTo,
		&t.StartedBy, &startedAt, &t.CompletedBy, &completedAt,
		&t.Status, &t.Priority, &dueDate, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parsed
	t.StartedAt = parseOptionalTime(startedAt)
	t.CompletedAt = parseOptionalTime(completedAt)
	t.DueDate = parseOptionalTime(dueDate)

	return &t, nil
}
