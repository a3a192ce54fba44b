package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_CreateValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()

	_, err := env.repo.Sessions().Create(ctx, uuid.Nil, "jti", now, now.Add(time.Hour))
	assert.Error(t, err)

	_, err = env.repo.Sessions().Create(ctx, uuid.New(), "", now, now.Add(time.Hour))
	assert.Error(t, err)

	_, err = env.repo.Sessions().Create(ctx, uuid.New(), "jti", now, now.Add(-time.Second))
	assert.Error(t, err)
}

func TestSessions_ForeignKeysAreEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.repo.Sessions()
	now := env.clock.Now()

	_, err := store.Create(ctx, uuid.New(), "jti-orphan", now, now.Add(time.Hour))
	assert.Error(t, err)

	exists, err := store.Exists(ctx, "jti-orphan")
	require.NoError(t, err)
	assert.False(t, exists)

	user := env.seedStudent(t)
	_, err = store.Create(ctx, user.ID, "jti-owned", now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = env.db.NewDelete().
		Model((*auth.User)(nil)).
		Where("id = ?", user.ID).
		Exec(ctx)
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "jti-owned")
	require.NoError(t, err)
	assert.False(t, exists, "deleting the user cascades to its sessions")
}

func TestSessions_TouchAndExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.repo.Sessions()
	now := env.clock.Now()

	user := env.seedStudent(t)
	_, err := store.Create(ctx, user.ID, "jti-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	found, err := store.Touch(ctx, "jti-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Touch(ctx, "jti-missing", now)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = store.Touch(ctx, "", now)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := store.Exists(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.GetByTokenID(ctx, "jti-missing")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestSessions_DeleteCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.repo.Sessions()
	now := env.clock.Now()

	user := env.seedStudent(t)
	for _, jti := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, user.ID, jti, now, now.Add(time.Hour))
		require.NoError(t, err)
	}

	n, err := store.DeleteByTokenID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.DeleteByTokenID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.DeleteByTokenID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.DeleteByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := store.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionStats{}, stats)
}

func TestSessions_ExpiryComparesEachRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	store := env.repo.Sessions()
	now := env.clock.Now()

	user := env.seedStudent(t)
	_, err := store.Create(ctx, user.ID, "short", now, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = store.Create(ctx, user.ID, "exact", now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = store.Create(ctx, user.ID, "long", now, now.Add(2*time.Hour))
	require.NoError(t, err)

	// a row expiring exactly at the sweep instant survives
	n, err := store.DeleteExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := store.Stats(ctx, now.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, auth.SessionStats{Active: 1, Expired: 1, Total: 2}, stats)
}
