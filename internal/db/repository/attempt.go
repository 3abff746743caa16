package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/models"
)

// AttemptRepository persists the append-only login attempt log and the
// per-identifier lockout counters. It implements auth.AttemptStore: the
// append-then-recompute step runs inside one transaction, and the
// connection pool is capped at a single writer, so two concurrent
// failures for the same identifier cannot both read the pre-increment
// counter.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// State implements auth.AttemptStore.
func (r *AttemptRepository) State(ctx context.Context, identifier string) (auth.AttemptState, error) {
	var state auth.AttemptState
	var lockedUntil sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT failed_count, locked_until
		FROM login_lockouts
		WHERE identifier = ?
	`, identifier).Scan(&state.FailedCount, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.AttemptState{}, nil
	}
	if err != nil {
		return auth.AttemptState{}, fmt.Errorf("failed to query lockout state: %w", err)
	}

	if lockedUntil.Valid {
		t := lockedUntil.Time
		state.LockedUntil = &t
	}

	return state, nil
}

// Fail implements auth.AttemptStore.
func (r *AttemptRepository) Fail(ctx context.Context, identifier string, at time.Time, threshold int, lockFor time.Duration) (auth.AttemptState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.AttemptState{}, fmt.Errorf("failed to begin attempt tx: %w", err)
	}
	defer tx.Rollback()

	if err := appendAttempt(ctx, tx, identifier, at, false); err != nil {
		return auth.AttemptState{}, err
	}

	var failed int
	var lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_count, locked_until
		FROM login_lockouts
		WHERE identifier = ?
	`, identifier).Scan(&failed, &lockedUntil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return auth.AttemptState{}, fmt.Errorf("failed to read lockout row: %w", err)
	}

	// An active lock absorbs further failures without extending itself.
	if lockedUntil.Valid && at.Before(lockedUntil.Time) {
		until := lockedUntil.Time
		if err := tx.Commit(); err != nil {
			return auth.AttemptState{}, fmt.Errorf("failed to commit attempt tx: %w", err)
		}
		return auth.AttemptState{FailedCount: failed, LockedUntil: &until}, nil
	}

	// Expired lock: start counting fresh.
	if lockedUntil.Valid {
		failed = 0
	}

	failed++
	state := auth.AttemptState{FailedCount: failed}
	var nextLock any
	if failed >= threshold {
		until := at.Add(lockFor)
		state = auth.AttemptState{LockedUntil: &until}
		nextLock = until
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO login_lockouts (identifier, failed_count, locked_until, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identifier)
		DO UPDATE SET
			failed_count = excluded.failed_count,
			locked_until = excluded.locked_until,
			updated_at = excluded.updated_at
	`, identifier, state.FailedCount, nextLock, at)
	if err != nil {
		return auth.AttemptState{}, fmt.Errorf("failed to upsert lockout row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return auth.AttemptState{}, fmt.Errorf("failed to commit attempt tx: %w", err)
	}

	return state, nil
}

// Succeed implements auth.AttemptStore.
func (r *AttemptRepository) Succeed(ctx context.Context, identifier string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin attempt tx: %w", err)
	}
	defer tx.Rollback()

	if err := appendAttempt(ctx, tx, identifier, at, true); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM login_lockouts WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("failed to reset lockout row: %w", err)
	}

	return tx.Commit()
}

// Clear implements auth.AttemptStore.
func (r *AttemptRepository) Clear(ctx context.Context, identifier string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_lockouts WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("failed to clear lockout row: %w", err)
	}
	return nil
}

// History returns the most recent attempts for identifier, newest first.
func (r *AttemptRepository) History(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identifier, attempted_at, succeeded, COALESCE(client_ip, '')
		FROM login_attempts
		WHERE identifier = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT ?
	`, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt history: %w", err)
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		a := &models.LoginAttempt{}
		var succeeded int
		if err := rows.Scan(&a.ID, &a.Identifier, &a.AttemptedAt, &succeeded, &a.ClientIP); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Succeeded = succeeded == 1
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// Prune deletes attempt rows older than cutoff. Lockout rows whose lock
// has lapsed are removed as well.
func (r *AttemptRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE attempted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned attempts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		DELETE FROM login_lockouts
		WHERE updated_at < ? AND (locked_until IS NULL OR locked_until < ?)
	`, cutoff, time.Now())
	if err != nil {
		return deleted, fmt.Errorf("failed to prune lockout rows: %w", err)
	}

	return deleted, nil
}

func appendAttempt(ctx context.Context, tx *sql.Tx, identifier string, at time.Time, succeeded bool) error {
	s := 0
	if succeeded {
		s = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO login_attempts (identifier, attempted_at, succeeded)
		VALUES (?, ?, ?)
	`, identifier, at, s)
	if err != nil {
		return fmt.Errorf("failed to append attempt: %w", err)
	}

	return nil
}
