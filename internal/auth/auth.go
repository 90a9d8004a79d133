// Package auth checks credentials against the fixed collaborator list and
// remembers who is logged in.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dori/tandem/internal/kv"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password
var ErrInvalidCredentials = errors.New("invalid username or password")

// Keys in the kv store
const (
	UsersKey       = "users"
	CurrentUserKey = "current_user"
)

// Seed is a user created at bootstrap
type Seed struct {
	ID       string
	Username string
	Name     string
	Password string
}

// DefaultSeeds are the two collaborators every installation starts with
var DefaultSeeds = []Seed{
	{ID: "1", Username: "ravali", Name: "Ravali", Password: "ravali123"},
	{ID: "2", Username: "vinay", Name: "Vinay", Password: "vinay123"},
}

// Option configures Auth
type Option func(*Auth)

// WithCost sets the bcrypt cost for seeded secrets
func WithCost(cost int) Option {
	return func(a *Auth) { a.cost = cost }
}

// WithSeeds replaces the default collaborators
func WithSeeds(seeds []Seed) Option {
	return func(a *Auth) { a.seeds = seeds }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Auth) { a.log = l }
}

// Auth is the authentication boundary
type Auth struct {
	kv    kv.Store
	seeds []Seed
	cost  int
	log   *slog.Logger
	now   func() time.Time

	mu      sync.RWMutex
	users   []model.User
	current *model.User
}

// New loads the user table from s, seeding it on first run
func New(ctx context.Context, s kv.Store, opts ...Option) (*Auth, error) {
	a := &Auth{
		kv:    s,
		seeds: DefaultSeeds,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Component("auth")
	}

	users, err := a.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		users, err = a.seed(ctx)
		if err != nil {
			return nil, err
		}
	}
	a.users = users
	return a, nil
}

func (a *Auth) loadUsers(ctx context.Context) ([]model.User, error) {
	raw, ok, err := a.kv.Get(ctx, UsersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var users []model.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (a *Auth) seed(ctx context.Context) ([]model.User, error) {
	users := make([]model.User, 0, len(a.seeds))
	for _, s := range a.seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), a.cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", s.Username, err)
		}
		users = append(users, model.User{
			ID:             s.ID,
			Username:       s.Username,
			DisplayName:    s.Name,
			PasswordSecret: string(hash),
			CreatedAt:      a.now().UTC(),
		})
	}

	data, err := json.Marshal(users)
	if err != nil {
		return nil, err
	}
	if err := a.kv.Set(ctx, UsersKey, string(data)); err != nil {
		return nil, fmt.Errorf("failed to store users: %w", err)
	}
	a.log.Info("seeded users", "count", len(users))
	return users, nil
}

// Users returns the collaborators without their secrets
func (a *Auth) Users() []model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.User, len(a.users))
	for i, u := range a.users {
		out[i] = public(u)
	}
	return out
}

// Login checks the credentials and records the session
func (a *Auth) Login(ctx context.Context, username, password string) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var found *model.User
	for i := range a.users {
		if a.users[i].Username == username {
			found = &a.users[i]
			break
		}
	}
	if found == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordSecret), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := public(*found)
	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := a.kv.Set(ctx, CurrentUserKey, string(data)); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	a.current = &user
	a.log.Info("logged in", "user", user.ID)
	return &user, nil
}

// Restore resumes the session persisted by a previous Login. It returns nil
// when nobody is logged in.
func (a *Auth) Restore(ctx context.Context) (*model.User, error) {
	raw, ok, err := a.kv.Get(ctx, CurrentUserKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stored model.User
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if u.ID == stored.ID {
			user := public(u)
			a.current = &user
			return &user, nil
		}
	}
	return nil, nil
}

// Logout forgets the current session
func (a *Auth) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.kv.Delete(ctx, CurrentUserKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if a.current != nil {
		a.log.Info("logged out", "user", a.current.ID)
	}
	a.current = nil
	return nil
}

// CurrentUser returns the logged-in user, or nil
func (a *Auth) CurrentUser() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

func public(u model.User) model.User {
	u.PasswordSecret = ""
	return u
}
