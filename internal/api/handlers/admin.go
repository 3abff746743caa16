package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/respond"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/db/repository"
	"github.com/mpetrov/fleetgate/internal/models"
	"github.com/mpetrov/fleetgate/internal/policy"
)

// AdminHandler handles administrative operations
type AdminHandler struct {
	users     *repository.UserRepository
	hasher    *auth.PasswordHasher
	validator *policy.PasswordValidator
	tracker   *auth.LoginAttemptTracker
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	users *repository.UserRepository,
	hasher *auth.PasswordHasher,
	validator *policy.PasswordValidator,
	tracker *auth.LoginAttemptTracker,
) *AdminHandler {
	return &AdminHandler{
		users:     users,
		hasher:    hasher,
		validator: validator,
		tracker:   tracker,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	Enabled  *bool  `json:"enabled"`
}

// CreateUser creates a new user account
// POST /v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if result := h.validator.Validate(req.Password); !result.Valid {
		api.RespondError(c, http.StatusUnprocessableEntity, "weak_password", result.Message)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		api.RespondError(c, http.StatusUnprocessableEntity, "invalid_password", "Password cannot be empty")
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleDispatcher
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		Enabled:      enabled,
	}

	if err := h.users.Create(user); err != nil {
		log.Printf("failed to create user %s: %v", req.Username, err)
		api.RespondError(c, http.StatusConflict, "create_failed", "Unable to create user")
		return
	}

	api.RespondSuccess(c, user)
}

// UnlockRequest represents an administrative unlock request
type UnlockRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// Unlock lifts an active lockout and resets the failure counter
// POST /v1/admin/unlock
func (h *AdminHandler) Unlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.tracker.Clear(c.Request.Context(), req.Identifier); err != nil {
		log.Printf("failed to clear lockout for %s: %v", req.Identifier, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to clear lockout")
		return
	}

	log.Printf("lockout cleared for %s by admin from %s", req.Identifier, api.GetClientIP(c))
	api.RespondSuccess(c, gin.H{"cleared": true})
}
