package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/respond"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/db/repository"
	"github.com/mpetrov/fleetgate/internal/policy"
)

// PasswordHandler handles password changes
type PasswordHandler struct {
	users       *repository.UserRepository
	hasher      *auth.PasswordHasher
	validator   *policy.PasswordValidator
	allowLegacy bool
}

// NewPasswordHandler creates a new password handler
func NewPasswordHandler(users *repository.UserRepository, hasher *auth.PasswordHasher, validator *policy.PasswordValidator, allowLegacy bool) *PasswordHandler {
	return &PasswordHandler{
		users:       users,
		hasher:      hasher,
		validator:   validator,
		allowLegacy: allowLegacy,
	}
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Change replaces the authenticated user's password. The current
// password is re-verified, the candidate runs through the complexity
// policy, and only the new hash reaches storage.
// POST /v1/auth/password
func (h *PasswordHandler) Change(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	// Changing the password is also how legacy plaintext credentials
	// rotate onto hashes, so the tagged check applies here too.
	cred := auth.ResolveCredential(user.PasswordHash)
	ok, err = h.hasher.Check(req.CurrentPassword, cred, h.allowLegacy)
	if err != nil {
		log.Printf("credential anomaly for user %d during password change: %v", userID, err)
	}
	if !ok {
		api.RespondRejected(c)
		return
	}

	if result := h.validator.Validate(req.NewPassword); !result.Valid {
		api.RespondError(c, http.StatusUnprocessableEntity, "weak_password", result.Message)
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		api.RespondError(c, http.StatusUnprocessableEntity, "invalid_password", "Password cannot be empty")
		return
	}

	if err := h.users.UpdatePassword(userID, hash); err != nil {
		log.Printf("failed to update password for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to change password")
		return
	}

	api.RespondSuccess(c, gin.H{"changed": true})
}
