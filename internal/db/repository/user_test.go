package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/fleetgate/internal/models"
)

func createTestUser(t *testing.T, repo *UserRepository, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		Role:         models.RoleDispatcher,
		Enabled:      true,
	}
	require.NoError(t, repo.Create(user))
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database.DB)

	created := createTestUser(t, repo, "m.ivanov")
	assert.NotZero(t, created.ID)

	user, err := repo.GetByUsername("m.ivanov")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "m.ivanov", user.Username)
	assert.Equal(t, models.RoleDispatcher, user.Role)
	assert.True(t, user.Enabled)
	assert.False(t, user.TwoFactorEnabled)
	assert.Empty(t, user.TOTPSecret)
	assert.False(t, user.PasswordLastChanged.IsZero())

	byID, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)

	_, err = repo.GetByUsername("nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database.DB)

	createTestUser(t, repo, "m.ivanov")

	dup := &models.User{Username: "m.ivanov", PasswordHash: "$2a$10$x", Role: models.RoleAdmin, Enabled: true}
	require.Error(t, repo.Create(dup))
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database.DB)

	user := createTestUser(t, repo, "m.ivanov")

	require.NoError(t, repo.UpdatePassword(user.ID, "$2a$10$replacementreplacementreplacementreplace"))

	updated, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$replacementreplacementreplacementreplace", updated.PasswordHash)
}

func TestUserRepository_TwoFactorLifecycle(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database.DB)

	user := createTestUser(t, repo, "m.ivanov")

	// Activation without a pending secret is refused.
	require.Error(t, repo.ActivateTwoFactor(user.ID))

	// Setup stores the secret without enabling.
	require.NoError(t, repo.SetPendingTwoFactorSecret(user.ID, "JBSWY3DPEHPK3PXP"))

	pending, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.False(t, pending.TwoFactorEnabled)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", pending.TOTPSecret)

	// Activation confirms possession.
	require.NoError(t, repo.ActivateTwoFactor(user.ID))

	active, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, active.TwoFactorEnabled)

	// Disabling erases the secret, not just the flag.
	require.NoError(t, repo.DisableTwoFactor(user.ID))

	disabled, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.False(t, disabled.TwoFactorEnabled)
	assert.Empty(t, disabled.TOTPSecret)
}

func TestUserRepository_List(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database.DB)

	createTestUser(t, repo, "first")
	createTestUser(t, repo, "second")

	users, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
