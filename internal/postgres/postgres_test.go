package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to TEST_DATABASE_URL, migrates, and empties the tables
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))

	_, err = s.pool.Exec(ctx, "TRUNCATE tasks, projects")
	require.NoError(t, err)

	return s
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("x", &pgconn.PgError{Code: "23503"}), store.ErrValidation)
	assert.ErrorIs(t, classify("x", &pgconn.PgError{Code: "22P02"}), store.ErrValidation)
	assert.ErrorIs(t, classify("x", &pgconn.PgError{Code: "42P01"}), store.ErrConfiguration)
	assert.ErrorIs(t, classify("x", &pgconn.PgError{Code: "08006"}), store.ErrNetwork)
	assert.ErrorIs(t, classify("x", context.Canceled), context.Canceled)
	assert.Nil(t, store.KindOf(classify("x", context.Canceled)))
	assert.NoError(t, classify("x", nil))
}

func TestParseOp(t *testing.T) {
	assert.Equal(t, store.OpInsert, parseOp("INSERT"))
	assert.Equal(t, store.OpDelete, parseOp("DELETE"))
	assert.Equal(t, store.OpUnknown, parseOp("TRUNCATE"))
}

func TestSetList(t *testing.T) {
	set := newSetList()
	set.add("name", "a")
	set.add("status", "active")

	assert.Equal(t, "name = $1, status = $2", set.clause())
	assert.Equal(t, 3, set.next())
	assert.Equal(t, []any{"a", "active"}, set.args)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestProjectAndTaskRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, model.NewProject{Name: "Launch", Description: "Q3 launch", CreatedBy: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.False(t, project.CreatedAt.IsZero())
	assert.Equal(t, model.ProjectActive, project.Status)

	task, err := s.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: project.ID, CreatedBy: "1", Priority: model.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Nil(t, task.StartedAt)

	now := time.Now().UTC().Truncate(time.Microsecond)
	patch, err := model.StartPatch(*task, "2", now)
	require.NoError(t, err)
	started, err := s.UpdateTask(ctx, task.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, started.Status)
	assert.Equal(t, "2", *started.StartedBy)
	assert.True(t, started.StartedAt.Equal(now))

	require.NoError(t, s.DeleteProject(ctx, project.ID))
	tasks, err := s.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), store.ErrNotFound)
}

func TestConstraintsAreValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, model.NewTask{Title: "orphan", ProjectID: "missing", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.CreateProject(ctx, model.NewProject{Name: "x", Status: "archived", CreatedBy: "1"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestStaleLifecycleUpdateIsRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)
	assignee := "2"
	task, err := s.CreateTask(ctx, model.NewTask{Title: "Write brief", ProjectID: project.ID, CreatedBy: "1", AssignedTo: &assignee})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	start, err := model.StartPatch(*task, "1", now)
	require.NoError(t, err)
	_, err = s.UpdateTask(ctx, task.ID, start)
	require.NoError(t, err)

	// a second start built from the same pending copy
	again, err := model.StartPatch(*task, "2", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = s.UpdateTask(ctx, task.ID, again)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stored, err := s.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", *stored.StartedBy)

	unassigned, err := s.UpdateTask(ctx, task.ID, model.AssignPatch(""))
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedTo)
}

func TestProjectsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second"} {
		_, err := s.CreateProject(ctx, model.NewProject{Name: name, CreatedBy: "1"})
		require.NoError(t, err)
	}

	projects, err := s.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "second", projects[0].Name)
}

func TestSubscribeReceivesNotifications(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, store.TableProjects)
	require.NoError(t, err)
	defer sub.Close()

	_, err = s.CreateProject(ctx, model.NewProject{Name: "Launch", CreatedBy: "1"})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, store.Event{Table: store.TableProjects, Op: store.OpInsert}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}

	sub.Close()
	for range sub.Events() {
	}
}
