package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mpetrov/fleetgate/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepository handles user data access
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, password_last_changed, two_factor_enabled, two_factor_secret, role, enabled, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, role, enabled)
		VALUES (?, ?, ?, ?)
	`

	enabled := 0
	if user.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(query,
		user.Username,
		user.PasswordHash,
		user.Role,
		enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	return nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRow(query, username))
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRow(query, id))
}

// UpdatePassword replaces the stored hash and stamps the change time.
// The caller hands over a finished hash; plaintext never reaches the
// repository.
func (r *UserRepository) UpdatePassword(id int64, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = ?, password_last_changed = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// SetPendingTwoFactorSecret stores a freshly provisioned secret without
// activating it. Activation happens once the user proves possession via
// a valid code.
func (r *UserRepository) SetPendingTwoFactorSecret(id int64, secret string) error {
	query := `
		UPDATE users
		SET two_factor_secret = ?, two_factor_enabled = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, secret, id)
	if err != nil {
		return fmt.Errorf("failed to store two-factor secret: %w", err)
	}

	return nil
}

// ActivateTwoFactor marks the stored secret as confirmed.
func (r *UserRepository) ActivateTwoFactor(id int64) error {
	query := `
		UPDATE users
		SET two_factor_enabled = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND two_factor_secret IS NOT NULL
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to activate two-factor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check activation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no pending two-factor secret for user %d", id)
	}

	return nil
}

// DisableTwoFactor deactivates 2FA and erases the secret. The secret is
// removed, not merely flagged off.
func (r *UserRepository) DisableTwoFactor(id int64) error {
	query := `
		UPDATE users
		SET two_factor_enabled = 0, two_factor_secret = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}

	return nil
}

// List lists all users
func (r *UserRepository) List() ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User

	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Delete deletes a user
func (r *UserRepository) Delete(id int64) error {
	query := `DELETE FROM users WHERE id = ?`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user, err := r.scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepository) scanUserRow(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var twoFactorEnabled, enabled int
	var totpSecret sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.PasswordLastChanged,
		&twoFactorEnabled,
		&totpSecret,
		&user.Role,
		&enabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.TwoFactorEnabled = twoFactorEnabled == 1
	user.TOTPSecret = totpSecret.String
	user.Enabled = enabled == 1

	return user, nil
}
