package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/fleetgate/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database))
	return database
}

func TestAttemptRepository_FailAndLock(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	now := time.Now().UTC()

	// Below the threshold the counter just climbs.
	for i := 1; i <= 4; i++ {
		state, err := repo.Fail(ctx, "u1", now, 5, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, state.FailedCount)
		assert.Nil(t, state.LockedUntil)
	}

	// Fifth failure locks.
	state, err := repo.Fail(ctx, "u1", now, 5, 15*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil)
	assert.WithinDuration(t, now.Add(15*time.Minute), *state.LockedUntil, time.Second)

	// State reads back the same lock.
	state, err = repo.State(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil)

	// Further failures while locked do not extend the lock.
	later := now.Add(time.Minute)
	state, err = repo.Fail(ctx, "u1", later, 5, 15*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil)
	assert.WithinDuration(t, now.Add(15*time.Minute), *state.LockedUntil, time.Second)
}

func TestAttemptRepository_ExpiredLockRestartsCount(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := repo.Fail(ctx, "u1", now, 3, 10*time.Minute)
		require.NoError(t, err)
	}

	// After the lock lapses a new failure starts a fresh count.
	afterExpiry := now.Add(11 * time.Minute)
	state, err := repo.Fail(ctx, "u1", afterExpiry, 3, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, state.FailedCount)
	assert.Nil(t, state.LockedUntil)
}

func TestAttemptRepository_SucceedResets(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		_, err := repo.Fail(ctx, "u1", now, 5, 15*time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Succeed(ctx, "u1", now))

	state, err := repo.State(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.FailedCount)
	assert.Nil(t, state.LockedUntil)
}

func TestAttemptRepository_Clear(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := repo.Fail(ctx, "u1", now, 5, 15*time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Clear(ctx, "u1"))

	state, err := repo.State(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.FailedCount)
	assert.Nil(t, state.LockedUntil)
}

func TestAttemptRepository_HistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	base := time.Now().UTC().Add(-time.Minute)

	_, err := repo.Fail(ctx, "u1", base, 5, 15*time.Minute)
	require.NoError(t, err)
	_, err = repo.Fail(ctx, "u1", base.Add(time.Second), 5, 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Succeed(ctx, "u1", base.Add(2*time.Second)))

	history, err := repo.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest first; the successful attempt is the latest entry.
	assert.True(t, history[0].Succeeded)
	assert.False(t, history[1].Succeeded)
	assert.False(t, history[2].Succeeded)

	// A reset does not rewrite history.
	require.NoError(t, repo.Clear(ctx, "u1"))
	history, err = repo.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestAttemptRepository_Prune(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewAttemptRepository(database.DB)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	_, err := repo.Fail(ctx, "stale", old, 5, 15*time.Minute)
	require.NoError(t, err)
	_, err = repo.Fail(ctx, "fresh", recent, 5, 15*time.Minute)
	require.NoError(t, err)

	deleted, err := repo.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := repo.History(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
