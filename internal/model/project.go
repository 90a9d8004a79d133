package model

import (
	"fmt"
	"strings"
	"time"
)

// ProjectStatus represents the state of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
)

// Valid reports whether s is a known project status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

// Project is a shared container of tasks, visible to every user
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`

	// Derived placeholder, never authoritative. Tasks live in their own collection.
	Tasks []Task `json:"tasks"`
}

// NewProject holds the caller-supplied fields of a project to create
type NewProject struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	CreatedBy   string        `json:"createdBy"`
}

// Normalize fills defaults the same way every backend would
func (n NewProject) Normalize() NewProject {
	n.Name = strings.TrimSpace(n.Name)
	if n.Status == "" {
		n.Status = ProjectActive
	}
	return n
}

// Validate checks the input against the project invariants
func (n NewProject) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if !n.Status.Valid() {
		return fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, n.Status)
	}
	if n.CreatedBy == "" {
		return fmt.Errorf("%w: project creator is required", ErrInvalidInput)
	}
	return nil
}

// ProjectPatch is a partial update; nil fields are left untouched
type ProjectPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Status == nil
}

// Validate checks the fields the patch sets
func (p ProjectPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: project name cannot be blank", ErrInvalidInput)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, *p.Status)
	}
	return nil
}

// Apply merges the patch into a copy of project
func (p ProjectPatch) Apply(project Project) Project {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	return project
}
