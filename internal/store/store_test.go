package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/dori/tandem/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", E("create project", ErrNetwork, cause))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrNetwork, KindOf(err))
	assert.Nil(t, KindOf(cause))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create project", se.Op)
	assert.Equal(t, "create project: network failure: connection refused", se.Error())
	assert.Equal(t, "delete task: not found", E("delete task", ErrNotFound, nil).Error())
}

func TestUnavailableFailsWithConfiguration(t *testing.T) {
	ctx := context.Background()
	u := Unavailable{Reason: "remote.url is empty"}

	_, err := u.Projects(ctx)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = u.CreateTask(ctx, model.NewTask{})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, u.DeleteProject(ctx, "x"), ErrConfiguration)
	assert.Contains(t, u.DeleteTask(ctx, "x").Error(), "remote.url is empty")

	sub, err := u.Subscribe(ctx, TableTasks)
	require.NoError(t, err)
	sub.Close()
	sub.Close()
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestIDGenIsMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	gen := NewIDGen(func() time.Time { return fixed })

	first := gen.Next()
	second := gen.Next()
	assert.Equal(t, "1700000000000", first)
	assert.Equal(t, "1700000000001", second)

	a, _ := strconv.ParseInt(first, 10, 64)
	b, _ := strconv.ParseInt(second, 10, 64)
	assert.Less(t, a, b)
}

func TestHubDeliversPerTable(t *testing.T) {
	hub := NewHub()
	projects := hub.Subscribe(TableProjects)
	tasks := hub.Subscribe(TableTasks)

	hub.Publish(Event{Table: TableTasks, Op: OpInsert})

	select {
	case ev := <-tasks.Events():
		assert.Equal(t, Event{Table: TableTasks, Op: OpInsert}, ev)
	case <-time.After(time.Second):
		t.Fatal("task subscriber did not receive event")
	}

	select {
	case ev := <-projects.Events():
		t.Fatalf("project subscriber got unexpected event %v", ev)
	default:
	}

	projects.Close()
	tasks.Close()
	hub.Close()
}

func TestHubCoalescesBursts(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(TableProjects)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		hub.Publish(Event{Table: TableProjects, Op: OpUpdate})
	}

	<-sub.Events()
	select {
	case <-sub.Events():
		t.Fatal("burst should collapse into a single pending signal")
	default:
	}
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(TableProjects)

	hub.Close()
	_, open := <-sub.Events()
	assert.False(t, open)

	sub.Close()
	late := hub.Subscribe(TableTasks)
	_, open = <-late.Events()
	assert.False(t, open)
}
