// Package config loads settings from defaults, an optional YAML file and
// TANDEM_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dori/tandem/internal/db"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. TANDEM_REMOTE_URL
const EnvPrefix = "TANDEM"

// Remote drivers
const (
	RemotePostgres = "postgres"
	RemoteSQLite   = "sqlite"
	RemoteNone     = "none"
)

// Config is the application configuration
type Config struct {
	DataDir       string       `mapstructure:"data_dir"`
	Notifications bool         `mapstructure:"notifications"`
	Log           LogConfig    `mapstructure:"log"`
	Mirror        MirrorConfig `mapstructure:"mirror"`
	Remote        RemoteConfig `mapstructure:"remote"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MirrorConfig selects the key-value store behind the local mirror
type MirrorConfig struct {
	Driver      string `mapstructure:"driver"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// RemoteConfig selects the remote store
type RemoteConfig struct {
	Driver       string        `mapstructure:"driver"`
	URL          string        `mapstructure:"url"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Configured reports whether a usable remote store is named. A postgres
// driver without a URL counts as unconfigured.
func (r RemoteConfig) Configured() bool {
	switch r.Driver {
	case RemotePostgres:
		return r.URL != ""
	case RemoteSQLite:
		return true
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("notifications", true)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("mirror.driver", "file")
	v.SetDefault("mirror.redis_addr", "localhost:6379")
	v.SetDefault("mirror.redis_prefix", "tandem:")
	v.SetDefault("remote.driver", RemotePostgres)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.sqlite_path", "")
	v.SetDefault("remote.poll_interval", 2*time.Second)
}

// Load reads the configuration. When path is empty, tandem.yaml is looked up
// in the working directory and the default data directory, and its absence
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tandem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(db.DefaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.DataDir == "" {
		c.DataDir = db.DefaultDataDir()
	}
	c.Remote.Driver = strings.ToLower(c.Remote.Driver)
	c.Mirror.Driver = strings.ToLower(c.Mirror.Driver)
	if c.Remote.SQLitePath == "" {
		c.Remote.SQLitePath = filepath.Join(c.DataDir, "tandem.db")
	}
}

// Validate rejects unknown drivers
func (c *Config) Validate() error {
	switch c.Remote.Driver {
	case RemotePostgres, RemoteSQLite, RemoteNone:
	default:
		return fmt.Errorf("unknown remote.driver %q", c.Remote.Driver)
	}
	switch c.Mirror.Driver {
	case "file", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown mirror.driver %q", c.Mirror.Driver)
	}
	if c.Remote.PollInterval < 0 {
		return fmt.Errorf("remote.poll_interval must not be negative")
	}
	return nil
}

// LogFile is where logs go when the terminal is owned by the UI
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "tandem.log")
}
