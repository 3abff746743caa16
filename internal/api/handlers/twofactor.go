package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/respond"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/db/repository"
)

// TwoFactorHandler handles the 2FA enrollment lifecycle: setup issues a
// secret, activate confirms possession, disable erases the secret.
type TwoFactorHandler struct {
	users       *repository.UserRepository
	provisioner *auth.TOTPProvisioner
}

// NewTwoFactorHandler creates a new two-factor handler
func NewTwoFactorHandler(users *repository.UserRepository, provisioner *auth.TOTPProvisioner) *TwoFactorHandler {
	return &TwoFactorHandler{
		users:       users,
		provisioner: provisioner,
	}
}

// Setup provisions a fresh secret for the authenticated user. The secret
// and URI appear in this response exactly once; they are never logged.
// POST /v1/auth/2fa/setup
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	enrollment, err := h.provisioner.GenerateSecret(currentUsername(c))
	if err != nil {
		// Fail closed: without secure randomness 2FA must not be
		// enabled.
		log.Printf("two-factor secret generation failed for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to start two-factor setup")
		return
	}

	if err := h.users.SetPendingTwoFactorSecret(userID, enrollment.Secret); err != nil {
		log.Printf("failed to store pending two-factor secret for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to start two-factor setup")
		return
	}

	api.RespondSuccess(c, enrollment)
}

// QRImage renders the provisioning QR code for the pending or active
// secret.
// GET /v1/auth/2fa/qr
func (h *TwoFactorHandler) QRImage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user.TOTPSecret == "" {
		api.RespondError(c, http.StatusNotFound, "not_found", "No two-factor enrollment in progress")
		return
	}

	enrollment, err := h.provisioner.EnrollmentURI(user.Username, user.TOTPSecret)
	if err != nil {
		log.Printf("failed to build provisioning URI for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to render QR code")
		return
	}

	image, err := auth.RenderProvisioningImage(enrollment)
	if err != nil {
		log.Printf("failed to render QR image for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to render QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", image)
}

// TwoFactorCodeRequest carries a submitted TOTP code
type TwoFactorCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// Activate confirms possession of the pending secret and switches 2FA
// on.
// POST /v1/auth/2fa/activate
func (h *TwoFactorHandler) Activate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user.TOTPSecret == "" {
		api.RespondError(c, http.StatusConflict, "no_enrollment", "No two-factor enrollment in progress")
		return
	}

	if !auth.VerifyCode(req.Code, user.TOTPSecret, time.Now()) {
		api.RespondError(c, http.StatusUnauthorized, "invalid_code", "Invalid code")
		return
	}

	if err := h.users.ActivateTwoFactor(userID); err != nil {
		log.Printf("failed to activate two-factor for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to activate two-factor")
		return
	}

	api.RespondSuccess(c, gin.H{"two_factor_enabled": true})
}

// Disable switches 2FA off after a final valid code and erases the
// stored secret.
// POST /v1/auth/2fa/disable
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		api.RespondError(c, http.StatusUnauthorized, "unauthorized", "Session required")
		return
	}

	var req TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || !user.TwoFactorEnabled {
		api.RespondError(c, http.StatusConflict, "not_enabled", "Two-factor is not enabled")
		return
	}

	if !auth.VerifyCode(req.Code, user.TOTPSecret, time.Now()) {
		api.RespondError(c, http.StatusUnauthorized, "invalid_code", "Invalid code")
		return
	}

	if err := h.users.DisableTwoFactor(userID); err != nil {
		log.Printf("failed to disable two-factor for user %d: %v", userID, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to disable two-factor")
		return
	}

	api.RespondSuccess(c, gin.H{"two_factor_enabled": false})
}
