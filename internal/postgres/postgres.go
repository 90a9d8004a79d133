// Package postgres is the hosted Remote Store: projects and tasks in Postgres,
// with LISTEN/NOTIFY as the change feed.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the Postgres connection pool
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	// reconnectDelay is the pause between feed reconnect attempts
	reconnectDelay time.Duration
}

var (
	_ store.Backend    = (*Store)(nil)
	_ store.ChangeFeed = (*Store)(nil)
)

// Open connects to the database at url and verifies the connection
func Open(ctx context.Context, url string) (*Store, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, store.E("open", store.ErrConfiguration, fmt.Errorf("failed to parse config: %w", err))
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, store.E("open", store.ErrNetwork, fmt.Errorf("failed to create pool: %w", err))
	}

	s := New(pool)
	if err := s.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:           pool,
		log:            logger.Component("postgres"),
		reconnectDelay: time.Second,
	}
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Migrate applies the embedded schema, including the notification triggers
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		s.log.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Close releases the pool
func (s *Store) Close() {
	s.pool.Close()
}
