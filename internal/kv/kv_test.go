package kv

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every driver must share
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "shared_projects")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "shared_projects", `[{"id":"1"}]`))
	v, ok, err := s.Get(ctx, "shared_projects")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, s.Set(ctx, "shared_projects", `[]`))
	v, _, err = s.Get(ctx, "shared_projects")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Delete(ctx, "shared_projects"))
	_, ok, err = s.Get(ctx, "shared_projects")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "never_written"))
	assert.Error(t, s.Set(ctx, "../escape", "x"))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	s, err := OpenFile(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := OpenFile(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "shared_tasks", `[{"id":"42"}]`))
	require.NoError(t, first.Close())

	second, err := OpenFile(dir)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get(ctx, "shared_tasks")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"42"}]`, v)
}

func TestFileConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFile(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, "shared_tasks", `["same"]`))
			_, _, err := s.Get(ctx, "shared_tasks")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, _, err := s.Get(ctx, "shared_tasks")
	require.NoError(t, err)
	assert.Equal(t, `["same"]`, v)
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	s, err := OpenRedis(context.Background(), addr, "tandem-test:")
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)
	s.Close()

	_, err = Open(ctx, Options{Driver: "etcd"})
	assert.Error(t, err)
}
