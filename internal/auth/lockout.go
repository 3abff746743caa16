package auth

import (
	"context"
	"sync"
	"time"
)

// Attempt is a single immutable login attempt record.
type Attempt struct {
	Identifier string
	At         time.Time
	Succeeded  bool
}

// AttemptState is the per-identifier lockout state derived from the
// attempt log. LockedUntil is nil while the identifier is not locked.
type AttemptState struct {
	FailedCount int
	LockedUntil *time.Time
}

// AttemptStore persists login attempts and lockout counters. Fail must
// append the attempt and recompute the lockout state as one atomic step:
// two concurrent failing attempts for the same identifier must never both
// observe the pre-increment counter.
type AttemptStore interface {
	// State returns the current lockout state for identifier.
	State(ctx context.Context, identifier string) (AttemptState, error)

	// Fail appends a failed attempt and atomically increments the
	// counter, locking the identifier for lockFor once threshold
	// consecutive failures are reached. It returns the resulting state.
	Fail(ctx context.Context, identifier string, at time.Time, threshold int, lockFor time.Duration) (AttemptState, error)

	// Succeed appends a successful attempt and resets the counter.
	Succeed(ctx context.Context, identifier string, at time.Time) error

	// Clear resets the counter and lifts any active lock.
	Clear(ctx context.Context, identifier string) error
}

// Status is the caller-facing lockout decision for an identifier.
type Status struct {
	// Blocked means the identifier must be refused without checking
	// the password.
	Blocked bool
	// RetryAfter is how long the block lasts. Zero when not blocked.
	RetryAfter time.Duration
	// AttemptsLeft is how many more failures are tolerated before the
	// identifier locks. Zero when blocked.
	AttemptsLeft int
	// Warning is set when AttemptsLeft is low enough that the caller
	// should surface it to the user.
	Warning bool
}

const warningAttempts = 2

// LoginAttemptTracker records authentication attempts and derives
// lockout state. All mutation goes through the injected AttemptStore, so
// the tracker stays correct when the application runs in several
// processes sharing one store. Store errors fail closed: the identifier
// is reported as blocked rather than letting an outage disable the
// protection.
type LoginAttemptTracker struct {
	store     AttemptStore
	threshold int
	lockFor   time.Duration

	now func() time.Time
}

// NewLoginAttemptTracker creates a tracker that locks an identifier for
// lockFor after threshold consecutive failures.
func NewLoginAttemptTracker(store AttemptStore, threshold int, lockFor time.Duration) *LoginAttemptTracker {
	if threshold <= 0 {
		threshold = 5
	}
	if lockFor <= 0 {
		lockFor = 15 * time.Minute
	}
	return &LoginAttemptTracker{
		store:     store,
		threshold: threshold,
		lockFor:   lockFor,
		now:       time.Now,
	}
}

// IsBlocked reports the lockout decision for identifier. Safe to call
// before every login attempt; it never mutates state. Expired locks are
// treated as lifted without waiting for the next write.
func (t *LoginAttemptTracker) IsBlocked(ctx context.Context, identifier string) (Status, error) {
	state, err := t.store.State(ctx, identifier)
	if err != nil {
		return Status{Blocked: true}, err
	}
	return t.statusOf(state), nil
}

// RecordAttempt appends the attempt and recomputes the lockout state.
// A success resets the failure counter regardless of prior state.
func (t *LoginAttemptTracker) RecordAttempt(ctx context.Context, identifier string, succeeded bool) (Status, error) {
	now := t.now()

	if succeeded {
		if err := t.store.Succeed(ctx, identifier, now); err != nil {
			return Status{Blocked: true}, err
		}
		return Status{AttemptsLeft: t.threshold}, nil
	}

	state, err := t.store.Fail(ctx, identifier, now, t.threshold, t.lockFor)
	if err != nil {
		return Status{Blocked: true}, err
	}
	return t.statusOf(state), nil
}

// Clear resets the failure counter and lifts any active lock. Used after
// a verified successful login and as an administrative override.
func (t *LoginAttemptTracker) Clear(ctx context.Context, identifier string) error {
	return t.store.Clear(ctx, identifier)
}

func (t *LoginAttemptTracker) statusOf(state AttemptState) Status {
	now := t.now()

	if state.LockedUntil != nil && now.Before(*state.LockedUntil) {
		return Status{
			Blocked:    true,
			RetryAfter: state.LockedUntil.Sub(now),
		}
	}

	left := t.threshold - state.FailedCount
	if left < 0 {
		left = 0
	}
	return Status{
		AttemptsLeft: left,
		Warning:      left <= warningAttempts,
	}
}

// MemoryAttemptStore is an in-process AttemptStore. A single mutex
// serializes the append-then-recompute step across identifiers, which is
// sufficient at the request rates a login endpoint sees.
type MemoryAttemptStore struct {
	mu     sync.Mutex
	states map[string]AttemptState
	log    []Attempt

	maxLog int
}

// NewMemoryAttemptStore creates an empty in-memory attempt store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		states: make(map[string]AttemptState),
		maxLog: 10000,
	}
}

// State implements AttemptStore.
func (s *MemoryAttemptStore) State(_ context.Context, identifier string) (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[identifier], nil
}

// Fail implements AttemptStore.
func (s *MemoryAttemptStore) Fail(_ context.Context, identifier string, at time.Time, threshold int, lockFor time.Duration) (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(Attempt{Identifier: identifier, At: at, Succeeded: false})

	state := s.states[identifier]

	// An active lock absorbs further failures without extending itself.
	if state.LockedUntil != nil && at.Before(*state.LockedUntil) {
		return state, nil
	}

	// Expired lock: start counting fresh.
	if state.LockedUntil != nil {
		state = AttemptState{}
	}

	state.FailedCount++
	if state.FailedCount >= threshold {
		until := at.Add(lockFor)
		state = AttemptState{LockedUntil: &until}
	}

	s.states[identifier] = state
	return state, nil
}

// Succeed implements AttemptStore.
func (s *MemoryAttemptStore) Succeed(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(Attempt{Identifier: identifier, At: at, Succeeded: true})
	delete(s.states, identifier)
	return nil
}

// Clear implements AttemptStore.
func (s *MemoryAttemptStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, identifier)
	return nil
}

// Attempts returns a copy of the attempt log for identifier, oldest
// first.
func (s *MemoryAttemptStore) Attempts(identifier string) []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Attempt
	for _, a := range s.log {
		if a.Identifier == identifier {
			out = append(out, a)
		}
	}
	return out
}

// append adds to the bounded in-memory log. The log is advisory here;
// durable attempt history belongs to the SQLite store.
func (s *MemoryAttemptStore) append(a Attempt) {
	s.log = append(s.log, a)
	if len(s.log) > s.maxLog {
		s.log = s.log[len(s.log)-s.maxLog:]
	}
}
