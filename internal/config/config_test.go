package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TANDEM_DATA_DIR", "/tmp/tandem-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tandem-test", cfg.DataDir)
	assert.Equal(t, "file", cfg.Mirror.Driver)
	assert.Equal(t, RemotePostgres, cfg.Remote.Driver)
	assert.False(t, cfg.Remote.Configured())
	assert.Equal(t, 2*time.Second, cfg.Remote.PollInterval)
	assert.Equal(t, "/tmp/tandem-test/tandem.db", cfg.Remote.SQLitePath)
	assert.Equal(t, "/tmp/tandem-test/tandem.log", cfg.LogFile())
	assert.True(t, cfg.Notifications)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tandem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/tandem
notifications: false
log:
  level: DEBUG
mirror:
  driver: redis
  redis_addr: cache:6379
remote:
  driver: postgres
  url: postgres://file-url/tandem
  poll_interval: 500ms
`), 0644))

	t.Setenv("TANDEM_REMOTE_URL", "postgres://env-url/tandem")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/tandem", cfg.DataDir)
	assert.False(t, cfg.Notifications)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Mirror.Driver)
	assert.Equal(t, "cache:6379", cfg.Mirror.RedisAddr)
	assert.Equal(t, "postgres://env-url/tandem", cfg.Remote.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.PollInterval)
	assert.True(t, cfg.Remote.Configured())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TANDEM_DATA_DIR", t.TempDir())
	t.Setenv("TANDEM_REMOTE_DRIVER", "mysql")

	_, err := Load("")
	assert.ErrorContains(t, err, "remote.driver")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfigured(t *testing.T) {
	assert.True(t, RemoteConfig{Driver: RemoteSQLite}.Configured())
	assert.False(t, RemoteConfig{Driver: RemoteNone, URL: "x"}.Configured())
	assert.True(t, RemoteConfig{Driver: RemotePostgres, URL: "postgres://x"}.Configured())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
