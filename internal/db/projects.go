package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/google/uuid"
)

const projectColumns = `id, name, description, status, created_by, created_at`

// Projects returns all projects, newest first
func (db *DB) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, classify("list projects", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, classify("list projects", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list projects", err)
	}

	return projects, nil
}

// Project returns a single project by ID
func (db *DB) Project(ctx context.Context, id string) (*model.Project, error) {
	row := db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, classify("get project", err)
	}
	return p, nil
}

// CreateProject inserts a project, generating its id and creation time
func (db *DB) CreateProject(ctx context.Context, in model.NewProject) (*model.Project, error) {
	in = in.Normalize()

	row := db.QueryRowContext(ctx, `
		INSERT INTO projects (id, name, description, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+projectColumns,
		uuid.New().String(), in.Name, in.Description, in.Status, in.CreatedBy, db.timestamp())

	p, err := scanProject(row)
	if err != nil {
		return nil, classify("create project", err)
	}

	db.hub.Publish(store.Event{Table: store.TableProjects, Op: store.OpInsert})
	return p, nil
}

// UpdateProject merges patch into the stored project
func (db *DB) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if patch.Empty() {
		return db.Project(ctx, id)
	}

	var sets []string
	var args []interface{}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	args = append(args, id)

	row := db.QueryRowContext(ctx, `
		UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?
		RETURNING `+projectColumns, args...)

	p, err := scanProject(row)
	if err != nil {
		return nil, classify("update project", err)
	}

	db.hub.Publish(store.Event{Table: store.TableProjects, Op: store.OpUpdate})
	return p, nil
}

// DeleteProject deletes a project and its tasks in one transaction
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	var removedTasks int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id)
		if err != nil {
			return err
		}
		removedTasks, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return store.E("delete project", store.ErrNotFound, nil)
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err != nil {
		return classify("delete project", err)
	}

	db.hub.Publish(store.Event{Table: store.TableProjects, Op: store.OpDelete})
	if removedTasks > 0 {
		db.hub.Publish(store.Event{Table: store.TableTasks, Op: store.OpDelete})
	}
	return nil
}

func scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var createdAt string

	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedBy, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parsed
	p.Tasks = []model.Task{}

	return &p, nil
}
