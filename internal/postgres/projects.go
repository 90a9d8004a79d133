package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5"
)

const projectColumns = `id, name, description, status, created_by, created_at`

// Projects returns all projects, newest first
func (s *Store) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, classify("list projects", err)
	}

	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Project, error) {
		p, err := scanProject(row)
		if err != nil {
			return model.Project{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, classify("list projects", err)
	}
	if projects == nil {
		projects = []model.Project{}
	}
	return projects, nil
}

// Project returns a single project by ID
func (s *Store) Project(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get project", err)
	}
	return p, nil
}

// CreateProject inserts a project; the database assigns id and created_at
func (s *Store) CreateProject(ctx context.Context, in model.NewProject) (*model.Project, error) {
	in = in.Normalize()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (name, description, status, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns,
		in.Name, in.Description, string(in.Status), in.CreatedBy)

	p, err := scanProject(row)
	if err != nil {
		return nil, classify("create project", err)
	}
	return p, nil
}

// UpdateProject merges patch into the stored project
func (s *Store) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	if patch.Empty() {
		return s.Project(ctx, id)
	}

	set := newSetList()
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Status != nil {
		set.add("status", string(*patch.Status))
	}

	query := fmt.Sprintf(`UPDATE projects SET %s WHERE id = $%d RETURNING %s`,
		set.clause(), set.next(), projectColumns)

	p, err := scanProject(s.pool.QueryRow(ctx, query, append(set.args, id)...))
	if err != nil {
		return nil, classify("update project", err)
	}
	return p, nil
}

// DeleteProject removes a project; its tasks go with it
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return classify("delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return store.E("delete project", store.ErrNotFound, fmt.Errorf("project %s", id))
	}
	return nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.Tasks = []model.Task{}
	return &p, nil
}

// setList accumulates "column = $n" assignments for a partial update
type setList struct {
	cols []string
	args []any
}

func newSetList() *setList {
	return &setList{}
}

func (l *setList) add(col string, value any) {
	l.args = append(l.args, value)
	l.cols = append(l.cols, fmt.Sprintf("%s = $%d", col, len(l.args)))
}

func (l *setList) clause() string {
	return strings.Join(l.cols, ", ")
}

// next is the placeholder index after the assignments
func (l *setList) next() int {
	return len(l.args) + 1
}
