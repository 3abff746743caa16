package models

import "time"

// User represents a user account
type User struct {
	ID                  int64      `json:"id"`
	Username            string     `json:"username"`
	PasswordHash        string     `json:"-"` // Never expose password hash in JSON
	PasswordLastChanged time.Time  `json:"password_last_changed"`
	TwoFactorEnabled    bool       `json:"two_factor_enabled"`
	TOTPSecret          string     `json:"-"` // Never expose TOTP secret in JSON
	Role                string     `json:"role"`
	Enabled             bool       `json:"enabled"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Role constants
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleAccountant = "accountant"
)
