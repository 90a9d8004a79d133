// Package kv provides the string-keyed stores that back the local mirror and
// the persisted auth state.
package kv

import (
	"context"
	"fmt"
	"strings"
)

// Store is a synchronous string-keyed store
type Store interface {
	// Get returns the value stored under key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names accepted by Open
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Options selects and configures a driver
type Options struct {
	Driver string
	// Dir is the data directory used by the file and sqlite drivers
	Dir string
	// RedisAddr and RedisPrefix configure the redis driver
	RedisAddr   string
	RedisPrefix string
}

// Open builds the store named by opts.Driver
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case DriverMemory:
		return NewMemory(), nil
	case "", DriverFile:
		return OpenFile(opts.Dir)
	case DriverSQLite:
		return OpenSQLite(opts.Dir)
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown mirror driver %q", opts.Driver)
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
