// Package policy validates candidate passwords against the configured
// complexity rules.
package policy

import (
	"fmt"
	"unicode"
)

// Rules are the complexity thresholds a candidate password must meet.
type Rules struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultRules returns the rules applied when configuration leaves them
// unset.
func DefaultRules() Rules {
	return Rules{
		MinLength:     10,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// Result is the outcome of validating one candidate password. Message
// names the first unmet rule and is safe to show to users.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// PasswordValidator checks candidate passwords against a rule set.
type PasswordValidator struct {
	rules Rules
}

// NewPasswordValidator creates a validator. A zero MinLength falls back
// to the defaults.
func NewPasswordValidator(rules Rules) *PasswordValidator {
	if rules.MinLength <= 0 {
		rules = DefaultRules()
	}
	return &PasswordValidator{rules: rules}
}

// Validate checks password and reports the first unmet rule. Empty or
// missing input is invalid, never an error.
func (v *PasswordValidator) Validate(password string) Result {
	if password == "" {
		return Result{Message: "password is required"}
	}

	if len([]rune(password)) < v.rules.MinLength {
		return Result{Message: fmt.Sprintf("password must be at least %d characters long", v.rules.MinLength)}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if v.rules.RequireUpper && !hasUpper {
		return Result{Message: "password must contain at least one uppercase letter"}
	}
	if v.rules.RequireLower && !hasLower {
		return Result{Message: "password must contain at least one lowercase letter"}
	}
	if v.rules.RequireDigit && !hasDigit {
		return Result{Message: "password must contain at least one digit"}
	}
	if v.rules.RequireSymbol && !hasSymbol {
		return Result{Message: "password must contain at least one symbol"}
	}

	return Result{Valid: true}
}
