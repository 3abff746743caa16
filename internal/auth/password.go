package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when an empty password is submitted
	// for hashing. Hashing an empty string must be rejected, never done
	// silently.
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrMalformedHash indicates a stored hash that bcrypt could not
	// parse. Callers should log this as a data-integrity anomaly rather
	// than treat it as a normal wrong-password event.
	ErrMalformedHash = errors.New("stored password hash is malformed")

	// ErrLegacyCredentialDisabled indicates a stored plaintext credential
	// was found while the legacy migration path is switched off.
	ErrLegacyCredentialDisabled = errors.New("legacy plaintext credential found but migration path is disabled")
)

// PasswordHasher hashes and verifies passwords with bcrypt. Each hash
// embeds its own random salt and cost, so hashes remain verifiable after
// the configured cost changes.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// A cost of 0 selects the bcrypt default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash computes a salted one-way digest of password. Two calls with the
// same input produce different strings.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether password matches the stored bcrypt hash.
// A malformed hash yields false, never a panic or error.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CredentialKind tags how a stored credential value must be compared.
type CredentialKind int

const (
	// CredentialHashed is a bcrypt hash.
	CredentialHashed CredentialKind = iota
	// CredentialLegacyPlaintext is a pre-migration plaintext value.
	CredentialLegacyPlaintext
)

// StoredCredential is a stored password value resolved once at load time,
// so the comparison path is not re-detected on every verification call.
type StoredCredential struct {
	Kind  CredentialKind
	Value string
}

// ResolveCredential classifies a stored credential value by its bcrypt
// version prefix.
func ResolveCredential(stored string) StoredCredential {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(stored, prefix) {
			return StoredCredential{Kind: CredentialHashed, Value: stored}
		}
	}
	return StoredCredential{Kind: CredentialLegacyPlaintext, Value: stored}
}

// Check verifies password against a resolved credential.
//
// For hashed credentials the result is (matched, nil) on a clean
// comparison and (false, ErrMalformedHash) when the stored hash cannot
// be parsed. Legacy plaintext credentials compare in constant time and
// are honored only while allowLegacy is set; otherwise the check fails
// with ErrLegacyCredentialDisabled.
func (h *PasswordHasher) Check(password string, cred StoredCredential, allowLegacy bool) (bool, error) {
	switch cred.Kind {
	case CredentialHashed:
		err := bcrypt.CompareHashAndPassword([]byte(cred.Value), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)

	case CredentialLegacyPlaintext:
		if !allowLegacy {
			return false, ErrLegacyCredentialDisabled
		}
		return subtle.ConstantTimeCompare([]byte(cred.Value), []byte(password)) == 1, nil

	default:
		return false, fmt.Errorf("unknown credential kind %d", cred.Kind)
	}
}
