package main

import (
	"testing"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday
var refNow = time.Date(2025, 3, 5, 10, 30, 0, 0, time.UTC)

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func TestParseQuickAdd(t *testing.T) {
	task := parseQuickAdd("Fix login form !high due:friday @vinay", refNow)

	assert.Equal(t, "Fix login form", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, "vinay", task.assignee)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, endOfDay(2025, 3, 7), *task.DueDate)
}

func TestParseQuickAddKeepsUnknownTokens(t *testing.T) {
	task := parseQuickAdd("Ship it !urgent due:someday", refNow)

	assert.Equal(t, "Ship it !urgent due:someday", task.Title)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Nil(t, task.DueDate)
	assert.Empty(t, task.assignee)
}

func TestParseNaturalDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"today", endOfDay(2025, 3, 5)},
		{"tomorrow", endOfDay(2025, 3, 6)},
		{"wed", endOfDay(2025, 3, 12)},
		{"mon", endOfDay(2025, 3, 10)},
		{"nextweek", endOfDay(2025, 3, 12)},
		{"2025-04-01", endOfDay(2025, 4, 1)},
		{"04/01/2025", endOfDay(2025, 4, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseNaturalDate(tt.in, refNow)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, parseNaturalDate("whenever", refNow))
}

func TestResolveTaskByPrefix(t *testing.T) {
	st := provider.State{Tasks: []model.Task{
		{ID: "3f2a9c10-aaaa-4bbb-8ccc-000000000001", Title: "a"},
		{ID: "3f2b0000-aaaa-4bbb-8ccc-000000000002", Title: "b"},
	}}

	task, err := resolveTask(st, "3f2b")
	require.NoError(t, err)
	assert.Equal(t, "b", task.Title)

	_, err = resolveTask(st, "3f2")
	assert.ErrorContains(t, err, "matches 2 tasks")

	_, err = resolveTask(st, "ffff")
	assert.ErrorContains(t, err, "no task matches")
}

func TestResolveProjectByName(t *testing.T) {
	st := provider.State{Projects: []model.Project{
		{ID: "1740830400000", Name: "Website"},
		{ID: "1740830400001", Name: "Mobile"},
	}}

	p, err := resolveProject(st, "website")
	require.NoError(t, err)
	assert.Equal(t, "1740830400000", p.ID)

	p, err = resolveProject(st, "1740830400001")
	require.NoError(t, err)
	assert.Equal(t, "Mobile", p.Name)

	_, err = resolveProject(st, "17408304")
	assert.Error(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2a9c10", shortID("3f2a9c10-aaaa-4bbb-8ccc-000000000001"))
	assert.Equal(t, "1740830400000", shortID("1740830400000"))
}
