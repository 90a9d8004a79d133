package auth

import (
	"context"
	"testing"

	"github.com/dori/tandem/internal/kv"
	"github.com/dori/tandem/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, s kv.Store) *Auth {
	t.Helper()
	a, err := New(context.Background(), s, WithCost(bcrypt.MinCost), WithLogger(logger.Discard()))
	require.NoError(t, err)
	return a
}

func TestSeedsDefaultUsers(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	a := newTestAuth(t, s)

	users := a.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "1", users[0].ID)
	assert.Equal(t, "Ravali", users[0].DisplayName)
	assert.Empty(t, users[0].PasswordSecret)

	raw, ok, err := s.Get(ctx, UsersKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "ravali123")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t, kv.NewMemory())

	assert.Nil(t, a.CurrentUser())

	_, err := a.Login(ctx, "ravali", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login(ctx, "nobody", "ravali123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := a.Login(ctx, "vinay", "vinay123")
	require.NoError(t, err)
	assert.Equal(t, "2", user.ID)
	assert.Empty(t, user.PasswordSecret)
	assert.Equal(t, "2", a.CurrentUser().ID)

	require.NoError(t, a.Logout(ctx))
	assert.Nil(t, a.CurrentUser())
}

func TestRestoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	first := newTestAuth(t, s)
	_, err := first.Login(ctx, "ravali", "ravali123")
	require.NoError(t, err)

	second := newTestAuth(t, s)
	user, err := second.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, "1", second.CurrentUser().ID)

	require.NoError(t, second.Logout(ctx))
	third := newTestAuth(t, s)
	user, err = third.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}
