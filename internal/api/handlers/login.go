package handlers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/respond"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/config"
	"github.com/mpetrov/fleetgate/internal/db/repository"
)

// LoginHandler handles session authentication
type LoginHandler struct {
	config  *config.Config
	users   *repository.UserRepository
	hasher  *auth.PasswordHasher
	tracker *auth.LoginAttemptTracker
	issuer  *auth.TokenIssuer
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(
	cfg *config.Config,
	users *repository.UserRepository,
	hasher *auth.PasswordHasher,
	tracker *auth.LoginAttemptTracker,
	issuer *auth.TokenIssuer,
) *LoginHandler {
	return &LoginHandler{
		config:  cfg,
		users:   users,
		hasher:  hasher,
		tracker: tracker,
		issuer:  issuer,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token        string `json:"token"`
	ExpiresIn    int64  `json:"expires_in"`
	AttemptsLeft int    `json:"attempts_left,omitempty"`
}

// Login handles session authentication
// POST /v1/auth/login
func (h *LoginHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	clientIP := api.GetClientIP(c)

	// Lockout check comes before any credential work. A store error
	// fails closed: the attempt is refused rather than letting an
	// outage disable the protection.
	status, err := h.tracker.IsBlocked(ctx, req.Username)
	if err != nil {
		log.Printf("attempt store unavailable during lockout check for %s from %s: %v", req.Username, clientIP, err)
		api.RespondLocked(c, 0)
		return
	}
	if status.Blocked {
		api.RespondLocked(c, remainingMinutes(status.RetryAfter))
		return
	}

	user, err := h.users.GetByUsername(req.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("user lookup failed for %s: %v", req.Username, err)
		}
		// Unknown usernames burn an attempt too, so the response does
		// not reveal whether the username or the password was wrong.
		h.rejectAttempt(c, req.Username, clientIP)
		return
	}

	if !user.Enabled {
		h.rejectAttempt(c, req.Username, clientIP)
		return
	}

	cred := auth.ResolveCredential(user.PasswordHash)
	ok, err := h.hasher.Check(req.Password, cred, h.config.Security.AllowLegacyPlaintext)
	if err != nil {
		// Malformed stored hash or disabled legacy credential: a
		// data-integrity anomaly, not a normal wrong password.
		log.Printf("credential anomaly for %s: %v", req.Username, err)
	}
	if !ok {
		h.rejectAttempt(c, req.Username, clientIP)
		return
	}

	if user.TwoFactorEnabled {
		if req.TOTPCode == "" || !auth.VerifyCode(req.TOTPCode, user.TOTPSecret, time.Now()) {
			h.rejectAttempt(c, req.Username, clientIP)
			return
		}
	}

	if _, err := h.tracker.RecordAttempt(ctx, req.Username, true); err != nil {
		log.Printf("attempt store unavailable recording success for %s: %v", req.Username, err)
		api.RespondLocked(c, 0)
		return
	}

	ttl := h.config.GetSessionTTL()
	token, err := h.issuer.Issue(formatUserID(user.ID), user.Username, user.Role, ttl)
	if err != nil {
		log.Printf("failed to issue session token for %s: %v", req.Username, err)
		api.RespondError(c, http.StatusInternalServerError, "internal_error", "Unable to complete login")
		return
	}

	api.RespondSuccess(c, LoginResponse{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
	})
}

// rejectAttempt records a failure and sends the generic rejection. When
// the failure tips the identifier into the locked state, the response
// switches to locked; when the warning band is reached, the remaining
// attempts are surfaced.
func (h *LoginHandler) rejectAttempt(c *gin.Context, username, clientIP string) {
	status, err := h.tracker.RecordAttempt(c.Request.Context(), username, false)
	if err != nil {
		log.Printf("attempt store unavailable recording failure for %s from %s: %v", username, clientIP, err)
		api.RespondLocked(c, 0)
		return
	}

	if status.Blocked {
		api.RespondLocked(c, remainingMinutes(status.RetryAfter))
		return
	}

	if status.Warning {
		api.RespondErrorWithDetails(c, http.StatusUnauthorized, "invalid_credentials",
			"Invalid credentials", gin.H{"attempts_left": status.AttemptsLeft})
		return
	}

	api.RespondRejected(c)
}

func remainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
