package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dori/tandem/internal/kv"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMirror(t *testing.T, s kv.Store) *Mirror {
	t.Helper()
	return New(s, WithClock(func() time.Time { return epoch }), WithLogger(logger.Discard()))
}

func TestEmptyMirror(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	projects, err := m.Projects(ctx)
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)

	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestCreateProjectGeneratesClientFields(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	m := newTestMirror(t, s)

	first, err := m.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)
	second, err := m.CreateProject(ctx, model.NewProject{Name: "Docs", CreatedBy: "2"})
	require.NoError(t, err)

	assert.Equal(t, "1740830400000", first.ID)
	assert.Equal(t, "1740830400001", second.ID)
	assert.True(t, first.CreatedAt.Equal(epoch))
	assert.Equal(t, model.ProjectActive, first.Status)

	projects, err := m.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Docs", projects[0].Name, "newest first")

	raw, ok, err := s.Get(ctx, ProjectsKey)
	require.NoError(t, err)
	require.True(t, ok)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, []any{}, stored[0]["tasks"])
	assert.Equal(t, "2", stored[0]["createdBy"])
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	_, err := m.CreateProject(ctx, model.NewProject{Name: "  ", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = m.CreateTask(ctx, model.NewTask{Title: "t", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestUpdateAndDeleteMissingAreNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	name := "x"
	_, err := m.UpdateProject(ctx, "missing", model.ProjectPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = m.UpdateTask(ctx, "missing", model.AssignPatch("1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, m.DeleteProject(ctx, "missing"), store.ErrNotFound)
	assert.ErrorIs(t, m.DeleteTask(ctx, "missing"), store.ErrNotFound)
}

func TestTaskUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	task, err := m.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: "p1", CreatedBy: "1", Priority: model.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)

	patch, err := model.StartPatch(*task, "2", epoch.Add(time.Hour))
	require.NoError(t, err)
	started, err := m.UpdateTask(ctx, task.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, started.Status)
	assert.Equal(t, "2", *started.StartedBy)
	assert.Equal(t, model.PriorityHigh, started.Priority)
	assert.Equal(t, "Write brief", started.Title)

	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, *started, tasks[0])

	require.NoError(t, m.DeleteTask(ctx, task.ID))
	tasks, err = m.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStaleStartIsRejected(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	task, err := m.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: "p1", CreatedBy: "1"})
	require.NoError(t, err)

	first, err := model.StartPatch(*task, "1", epoch.Add(time.Hour))
	require.NoError(t, err)
	second, err := model.StartPatch(*task, "2", epoch.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = m.UpdateTask(ctx, task.ID, first)
	require.NoError(t, err)
	_, err = m.UpdateTask(ctx, task.ID, second)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "1", *tasks[0].StartedBy)
}

func TestSnapshotsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := kv.OpenFile(dir)
	require.NoError(t, err)
	m := newTestMirror(t, s)

	due := epoch.Add(48 * time.Hour)
	project, err := m.CreateProject(ctx, model.NewProject{Name: "Launch", Description: "Q3 launch", CreatedBy: "1"})
	require.NoError(t, err)
	task, err := m.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: project.ID, CreatedBy: "1", DueDate: &due})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := kv.OpenFile(dir)
	require.NoError(t, err)
	defer reopened.Close()
	again := newTestMirror(t, reopened)

	projects, err := again.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, *project, projects[0])

	tasks, err := again.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.True(t, tasks[0].DueDate.Equal(due))
}

func TestSaveOverwritesCollections(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, kv.NewMemory())

	_, err := m.CreateProject(ctx, model.NewProject{Name: "old", CreatedBy: "1"})
	require.NoError(t, err)

	require.NoError(t, m.SaveProjects(ctx, []model.Project{{ID: "9", Name: "server", Status: model.ProjectActive, CreatedBy: "2", CreatedAt: epoch}}))
	require.NoError(t, m.SaveTasks(ctx, nil))

	projects, err := m.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "server", projects[0].Name)
	assert.Equal(t, []model.Task{}, projects[0].Tasks)

	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
