package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func steppedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}

func TestProjectCRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	created, err := db.CreateProject(ctx, model.NewProject{Name: "Launch", Description: "Q3 launch", CreatedBy: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, model.ProjectActive, created.Status)
	assert.Equal(t, []model.Task{}, created.Tasks)

	name := "Launch v2"
	status := model.ProjectOnHold
	updated, err := db.UpdateProject(ctx, created.ID, model.ProjectPatch{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", updated.Name)
	assert.Equal(t, "Q3 launch", updated.Description)
	assert.Equal(t, model.ProjectOnHold, updated.Status)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	require.NoError(t, db.DeleteProject(ctx, created.ID))

	projects, err := db.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	db.SetClock(steppedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	for _, name := range []string{"first", "second", "third"} {
		_, err := db.CreateProject(ctx, model.NewProject{Name: name, CreatedBy: "1"})
		require.NoError(t, err)
	}

	projects, err := db.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "third", projects[0].Name)
	assert.Equal(t, "first", projects[2].Name)
}

func TestMissingRecordsAreNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	name := "x"
	_, err := db.UpdateProject(ctx, "missing", model.ProjectPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = db.UpdateTask(ctx, "missing", model.TaskPatch{Title: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, db.DeleteProject(ctx, "missing"), store.ErrNotFound)
	assert.ErrorIs(t, db.DeleteTask(ctx, "missing"), store.ErrNotFound)
}

func TestConstraintViolationsAreValidation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.CreateProject(ctx, model.NewProject{Name: "x", Status: "archived", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = db.CreateTask(ctx, model.NewTask{Title: "orphan", ProjectID: "nope", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestTaskLifecycleColumns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	project, err := db.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)

	due := time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC)
	task, err := db.CreateTask(ctx, model.NewTask{
		Title:     "Write brief",
		ProjectID: project.ID,
		CreatedBy: "1",
		Priority:  model.PriorityHigh,
		DueDate:   &due,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Nil(t, task.AssignedTo)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(due))

	startedAt := time.Date(2025, 5, 1, 9, 30, 0, 123456789, time.UTC)
	patch, err := model.StartPatch(*task, "2", startedAt)
	require.NoError(t, err)

	started, err := db.UpdateTask(ctx, task.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, started.Status)
	assert.Equal(t, "2", *started.StartedBy)
	assert.True(t, started.StartedAt.Equal(startedAt))
	assert.Nil(t, started.CompletedAt)

	assigned, err := db.UpdateTask(ctx, task.ID, model.AssignPatch("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", *assigned.AssignedTo)
	assert.Equal(t, model.TaskInProgress, assigned.Status)
}

func TestStaleLifecycleUpdateIsRejected(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	project, err := db.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)
	task, err := db.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: project.ID, CreatedBy: "1"})
	require.NoError(t, err)

	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	first, err := model.StartPatch(*task, "1", now)
	require.NoError(t, err)
	second, err := model.StartPatch(*task, "2", now.Add(time.Hour))
	require.NoError(t, err)

	_, err = db.UpdateTask(ctx, task.ID, first)
	require.NoError(t, err)
	_, err = db.UpdateTask(ctx, task.ID, second)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stored, err := db.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", *stored.StartedBy)
	assert.True(t, stored.StartedAt.Equal(now))

	require.NoError(t, db.DeleteTask(ctx, task.ID))
	_, err = db.UpdateTask(ctx, task.ID, second)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssignEmptyClearsAssignee(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	project, err := db.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)
	assignee := "2"
	task, err := db.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: project.ID, CreatedBy: "1", AssignedTo: &assignee})
	require.NoError(t, err)
	require.NotNil(t, task.AssignedTo)

	updated, err := db.UpdateTask(ctx, task.ID, model.AssignPatch(""))
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)

	stored, err := db.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
}

func TestDeleteProjectCascadesTasks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	keep, err := db.CreateProject(ctx, model.NewProject{Name: "keep", CreatedBy: "1"})
	require.NoError(t, err)
	drop, err := db.CreateProject(ctx, model.NewProject{Name: "drop", CreatedBy: "1"})
	require.NoError(t, err)

	for _, p := range []*model.Project{keep, drop, drop} {
		_, err := db.CreateTask(ctx, model.NewTask{Title: "t", ProjectID: p.ID, CreatedBy: "2"})
		require.NoError(t, err)
	}

	require.NoError(t, db.DeleteProject(ctx, drop.ID))

	tasks, err := db.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep.ID, tasks[0].ProjectID)
}

func TestWritesNotifySubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db := openTestDB(t)

	sub, err := db.Subscribe(ctx, store.TableTasks)
	require.NoError(t, err)
	defer sub.Close()

	project, err := db.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)
	_, err = db.CreateTask(ctx, model.NewTask{Title: "t", ProjectID: project.ID, CreatedBy: "1"})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, store.TableTasks, ev.Table)
		assert.Equal(t, store.OpInsert, ev.Op)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for task insert")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-sub.Events()
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchSeesOtherConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	watcher, err := Open(path)
	require.NoError(t, err)
	defer watcher.Close()
	watcher.Watch(20 * time.Millisecond)

	sub, err := watcher.Subscribe(ctx, store.TableProjects)
	require.NoError(t, err)
	defer sub.Close()

	writer, err := Open(path)
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.CreateProject(ctx, model.NewProject{Name: "from elsewhere", CreatedBy: "2"})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, store.OpUnknown, ev.Op)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not notice the other connection's commit")
	}
}

// TestNestedQueriesNoDeadlock guards against issuing a second query while rows
// from the first are still open: with SetMaxOpenConns(1) that would hang.
func TestNestedQueriesNoDeadlock(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 3; i++ {
		p, err := db.CreateProject(ctx, model.NewProject{Name: "p", CreatedBy: "1"})
		require.NoError(t, err)
		for j := 0; j < 2; j++ {
			_, err := db.CreateTask(ctx, model.NewTask{Title: "t", ProjectID: p.ID, CreatedBy: "1"})
			require.NoError(t, err)
		}
	}

	done := make(chan error, 1)
	go func() {
		projects, err := db.Projects(ctx)
		if err != nil {
			done <- err
			return
		}
		for _, p := range projects {
			if _, err := db.Project(ctx, p.ID); err != nil {
				done <- err
				return
			}
			if _, err := db.Tasks(ctx); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out - possible deadlock detected")
	}
}
