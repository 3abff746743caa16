package models

import "time"

// LoginAttempt is one row of the append-only login attempt log. Rows are
// never mutated, only appended and periodically pruned.
type LoginAttempt struct {
	ID          int64     `json:"id"`
	Identifier  string    `json:"identifier"`
	AttemptedAt time.Time `json:"attempted_at"`
	Succeeded   bool      `json:"succeeded"`
	ClientIP    string    `json:"client_ip,omitempty"`
}

// Lockout is the per-identifier counter row derived from the attempt
// log.
type Lockout struct {
	Identifier  string     `json:"identifier"`
	FailedCount int        `json:"failed_count"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
