// Package provider holds the session state shared with the UI: the in-memory
// projects and tasks, the loading and error flags, and the mutation entry
// points that keep them in step with the backends.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/service"
	"github.com/dori/tandem/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by entry points called after Close
var ErrClosed = errors.New("session closed")

// Mirror is the local snapshot store the session backs its collections up to
type Mirror interface {
	store.Backend
	SaveProjects(ctx context.Context, projects []model.Project) error
	SaveTasks(ctx context.Context, tasks []model.Task) error
}

// State is a point-in-time copy of the session for rendering
type State struct {
	Projects []model.Project
	Tasks    []model.Task
	Loading  bool
	// Error is the last failure, empty when none
	Error string
}

// Option configures a Session
type Option func(*Session)

// WithClock sets the clock used for lifecycle stamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithDegradedHook is called whenever an operation was answered by the mirror
func WithDegradedHook(fn func(op string, err error)) Option {
	return func(s *Session) { s.onDegraded = fn }
}

// Session is the state of one logged-in user. It is created on login, started
// once, and closed on logout.
type Session struct {
	user     model.User
	projects *service.ProjectService
	tasks    *service.TaskService
	local    Mirror
	feed     store.ChangeFeed

	now        func() time.Time
	log        *slog.Logger
	onDegraded func(op string, err error)

	mu           sync.Mutex
	projectList  []model.Project
	taskList     []model.Task
	loading      bool
	lastErr      string
	bootstrapped bool
	closed       bool

	persistMu sync.Mutex
	refetch   singleflight.Group
	changes   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*store.Subscription
	wg     sync.WaitGroup
}

// New creates a session for user over the remote store and the mirror. feed
// may be nil when the remote cannot push notifications.
func New(user model.User, remote store.Backend, feed store.ChangeFeed, local Mirror, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		user:        user,
		local:       local,
		feed:        feed,
		now:         time.Now,
		projectList: []model.Project{},
		taskList:    []model.Task{},
		changes:     make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Component("provider")
	}
	s.log = s.log.With("user", user.ID)

	svcOpts := []service.Option{
		service.WithLogger(s.log),
		service.WithFallback(s.degraded),
	}
	s.tasks = service.NewTaskService(remote, local, svcOpts...)
	s.projects = service.NewProjectService(remote, local, s.tasks, svcOpts...)
	return s
}

// User returns the session owner
func (s *Session) User() model.User {
	return s.user
}

// Changes signals after every state change. Signals coalesce; read Snapshot
// after receiving one. The channel is closed by Close.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Projects: cloneProjects(s.projectList),
		Tasks:    cloneTasks(s.taskList),
		Loading:  s.loading,
		Error:    s.lastErr,
	}
}

// ClearError resets the error flag
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// Start loads both collections and subscribes to remote changes
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = true
	s.mu.Unlock()
	s.notify()

	s.load(ctx)
	s.subscribe()
	return nil
}

// load fetches projects and tasks concurrently. A collection that cannot be
// fetched through the services is read from the mirror directly.
func (s *Session) load(ctx context.Context) {
	var projects []model.Project
	var tasks []model.Task

	var g errgroup.Group
	g.Go(func() error {
		var err error
		projects, err = s.projects.GetAll(ctx)
		if err != nil {
			s.log.Warn("project load failed, reading mirror", "err", err)
			projects, err = s.local.Projects(ctx)
		}
		if err != nil {
			projects = []model.Project{}
			return fmt.Errorf("load projects: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.GetAll(ctx)
		if err != nil {
			s.log.Warn("task load failed, reading mirror", "err", err)
			tasks, err = s.local.Tasks(ctx)
		}
		if err != nil {
			tasks = []model.Task{}
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	err := g.Wait()

	s.mu.Lock()
	s.projectList = projects
	s.taskList = tasks
	s.loading = false
	s.bootstrapped = true
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("initial load failed", "err", err)
	} else {
		s.log.Info("session loaded", "projects", len(projects), "tasks", len(tasks))
	}

	s.persistProjects(ctx)
	s.persistTasks(ctx)
	s.notify()
}

func (s *Session) subscribe() {
	if s.feed == nil {
		return
	}
	for _, table := range []store.Table{store.TableProjects, store.TableTasks} {
		sub, err := s.feed.Subscribe(s.ctx, table)
		if err != nil {
			s.log.Warn("change feed unavailable", "table", table, "err", err)
			continue
		}

		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()

		s.wg.Add(1)
		go func(table store.Table, sub *store.Subscription) {
			defer s.wg.Done()
			for ev := range sub.Events() {
				s.log.Debug("change notification", "table", ev.Table, "op", ev.Op)
				s.refresh(s.ctx, table)
			}
		}(table, sub)
	}
}

// Refresh refetches both collections and replaces them
func (s *Session) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	for _, table := range []store.Table{store.TableProjects, store.TableTasks} {
		wg.Add(1)
		go func(table store.Table) {
			defer wg.Done()
			s.refresh(ctx, table)
		}(table)
	}
	wg.Wait()
}

// refresh replaces one collection with a full refetch. Concurrent refreshes of
// the same table share a single fetch.
func (s *Session) refresh(ctx context.Context, table store.Table) {
	_, err, _ := s.refetch.Do(string(table), func() (any, error) {
		switch table {
		case store.TableProjects:
			projects, err := s.projects.GetAll(ctx)
			if err != nil {
				return nil, err
			}
			if !s.replace(func() { s.projectList = projects }) {
				return nil, nil
			}
			s.persistProjects(ctx)
		case store.TableTasks:
			tasks, err := s.tasks.GetAll(ctx)
			if err != nil {
				return nil, err
			}
			if !s.replace(func() { s.taskList = tasks }) {
				return nil, nil
			}
			s.persistTasks(ctx)
		}
		return nil, nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("refresh failed", "table", table, "err", err)
		s.setError(err)
	}
}

// replace applies fn under the lock unless the session has been closed
func (s *Session) replace(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

// Close releases subscriptions and clears the collections. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.projectList = []model.Project{}
	s.taskList = []model.Task{}
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()

	close(s.changes)
	s.log.Info("session closed")
}

func (s *Session) degraded(op string, err error) {
	s.mu.Lock()
	s.lastErr = fmt.Sprintf("%s: remote store unavailable, using local copy (%v)", op, err)
	s.mu.Unlock()

	if s.onDegraded != nil {
		s.onDegraded(op, err)
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.notify()
}

// notify signals Changes without blocking
func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) persistProjects(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if !s.bootstrapped || s.closed {
		s.mu.Unlock()
		return
	}
	projects := cloneProjects(s.projectList)
	s.mu.Unlock()

	if err := s.local.SaveProjects(ctx, projects); err != nil {
		s.log.Warn("mirroring projects failed", "err", err)
	}
}

func (s *Session) persistTasks(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if !s.bootstrapped || s.closed {
		s.mu.Unlock()
		return
	}
	tasks := cloneTasks(s.taskList)
	s.mu.Unlock()

	if err := s.local.SaveTasks(ctx, tasks); err != nil {
		s.log.Warn("mirroring tasks failed", "err", err)
	}
}

func cloneProjects(in []model.Project) []model.Project {
	out := make([]model.Project, len(in))
	copy(out, in)
	return out
}

func cloneTasks(in []model.Task) []model.Task {
	out := make([]model.Task, len(in))
	copy(out, in)
	return out
}
