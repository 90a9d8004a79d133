package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dori/tandem/internal/auth"
	"github.com/dori/tandem/internal/config"
	"github.com/dori/tandem/internal/db"
	"github.com/dori/tandem/internal/kv"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/mirror"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/notify"
	"github.com/dori/tandem/internal/postgres"
	"github.com/dori/tandem/internal/provider"
	"github.com/dori/tandem/internal/store"
	"github.com/gofrs/flock"
)

// App holds the application state and dependencies
type App struct {
	Config   *config.Config
	Auth     *auth.Auth
	Mirror   *mirror.Mirror
	Remote   store.Backend
	Feed     store.ChangeFeed
	Notifier *notify.Notifier
	DataDir  string

	kv       kv.Store
	pg       *postgres.Store
	sqlite   *db.DB
	lockFile *flock.Flock
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session *provider.Session
}

// Option configures an App
type Option func(*App)

// WithClock sets the clock handed to sessions
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithNotifier replaces the desktop notifier
func WithNotifier(n *notify.Notifier) Option {
	return func(a *App) { a.Notifier = n }
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("missing configuration")
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app := &App{
		Config:   cfg,
		DataDir:  cfg.DataDir,
		Notifier: notify.NewNotifier(),
		log:      logger.Component("app"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	app.Notifier.SetEnabled(cfg.Notifications)

	// Acquire lock to ensure single instance
	if err := app.acquireLock(); err != nil {
		return nil, err
	}

	if err := app.open(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) open(ctx context.Context) error {
	kvs, err := kv.Open(ctx, kv.Options{
		Driver:      a.Config.Mirror.Driver,
		Dir:         a.DataDir,
		RedisAddr:   a.Config.Mirror.RedisAddr,
		RedisPrefix: a.Config.Mirror.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to open mirror store: %w", err)
	}
	a.kv = kvs
	a.Mirror = mirror.New(kvs, mirror.WithClock(a.now))

	if err := a.openRemote(ctx); err != nil {
		return err
	}

	a.Auth, err = auth.New(ctx, kvs)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	return nil
}

// openRemote selects the remote store. An unreachable or unconfigured hosted
// backend degrades to store.Unavailable so every call lands on the mirror.
func (a *App) openRemote(ctx context.Context) error {
	rc := a.Config.Remote

	switch {
	case rc.Driver == config.RemoteSQLite:
		database, err := db.Open(rc.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		database.Watch(rc.PollInterval)
		a.sqlite = database
		a.Remote, a.Feed = database, database

	case rc.Configured():
		pg, err := postgres.Open(ctx, rc.URL)
		if err != nil {
			a.log.Warn("remote store unreachable, working from mirror", "err", err)
			a.useUnavailable(err.Error())
			return nil
		}
		a.pg = pg
		a.Remote, a.Feed = pg, pg

	default:
		a.useUnavailable("no remote store configured")
	}

	a.log.Info("remote store selected", "driver", rc.Driver, "configured", a.pg != nil || a.sqlite != nil)
	return nil
}

func (a *App) useUnavailable(reason string) {
	u := store.Unavailable{Reason: reason}
	a.Remote, a.Feed = u, u
}

// Online reports whether a remote store is in use
func (a *App) Online() bool {
	return a.pg != nil || a.sqlite != nil
}

// Migrate applies the hosted schema. The sqlite store migrates itself on open.
func (a *App) Migrate(ctx context.Context) error {
	if a.pg == nil {
		return store.E("migrate", store.ErrConfiguration, errors.New("no postgres remote configured"))
	}
	return a.pg.Migrate(ctx)
}

// Login authenticates and starts a session for the user
func (a *App) Login(ctx context.Context, username, password string) (*provider.Session, error) {
	user, err := a.Auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, *user)
}

// Restore resumes the previous session, or returns nil when nobody is logged in
func (a *App) Restore(ctx context.Context) (*provider.Session, error) {
	user, err := a.Auth.Restore(ctx)
	if err != nil || user == nil {
		return nil, err
	}
	return a.startSession(ctx, *user)
}

// Session returns the active session, or nil
func (a *App) Session() *provider.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) startSession(ctx context.Context, user model.User) (*provider.Session, error) {
	a.closeSession()
	a.Notifier.ResetOffline()

	s := provider.New(user, a.Remote, a.Feed, a.Mirror,
		provider.WithClock(a.now),
		provider.WithDegradedHook(func(op string, err error) {
			reason := err.Error()
			if kind := store.KindOf(err); kind != nil {
				reason = kind.Error()
			}
			if err := a.Notifier.SendOffline(reason); err != nil {
				a.log.Debug("offline notification failed", "err", err)
			}
		}),
	)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}

	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	a.remindOverdue(s.Snapshot(), user.ID)
	return s, nil
}

// remindOverdue sends one reminder per overdue task assigned to userID
func (a *App) remindOverdue(st provider.State, userID string) {
	now := a.now()
	for i := range st.Tasks {
		t := &st.Tasks[i]
		if t.AssignedTo == nil || *t.AssignedTo != userID || !t.IsOverdue(now) {
			continue
		}
		if err := a.Notifier.SendDueReminder(t.Title, t.DueDate.Sub(now)); err != nil {
			a.log.Debug("due reminder failed", "task", t.ID, "err", err)
		}
	}
}

// Logout ends the session and forgets the user
func (a *App) Logout(ctx context.Context) error {
	a.closeSession()
	return a.Auth.Logout(ctx)
}

func (a *App) closeSession() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func (a *App) acquireLock() error {
	lockPath := filepath.Join(a.DataDir, "tandem.lock")
	a.lockFile = flock.New(lockPath)

	locked, err := a.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !locked {
		return fmt.Errorf("another instance of tandem is already running")
	}

	return nil
}

// releaseLock releases the file lock
func (a *App) releaseLock() {
	if a.lockFile != nil {
		a.lockFile.Unlock()
	}
}

// Close cleans up application resources
func (a *App) Close() error {
	var errs []error

	a.closeSession()

	if a.pg != nil {
		a.pg.Close()
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close mirror store: %w", err))
		}
	}

	a.releaseLock()

	return errors.Join(errs...)
}
