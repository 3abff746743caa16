package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/handlers"
	"github.com/mpetrov/fleetgate/internal/api/middleware"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/config"
	"github.com/mpetrov/fleetgate/internal/db/repository"
	"github.com/mpetrov/fleetgate/internal/policy"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	hasher *auth.PasswordHasher,
	validator *policy.PasswordValidator,
	provisioner *auth.TOTPProvisioner,
	tracker *auth.LoginAttemptTracker,
	issuer *auth.TokenIssuer,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Create handlers
	loginHandler := handlers.NewLoginHandler(cfg, userRepo, hasher, tracker, issuer)
	passwordHandler := handlers.NewPasswordHandler(userRepo, hasher, validator, cfg.Security.AllowLegacyPlaintext)
	twoFactorHandler := handlers.NewTwoFactorHandler(userRepo, provisioner)
	adminHandler := handlers.NewAdminHandler(userRepo, hasher, validator, tracker)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Login is the only unauthenticated credential endpoint
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", loginHandler.Login)
		}

		// Session-protected account endpoints
		account := v1.Group("/auth")
		account.Use(middleware.SessionAuth(issuer))
		{
			account.POST("/password", passwordHandler.Change)
			account.POST("/2fa/setup", twoFactorHandler.Setup)
			account.GET("/2fa/qr", twoFactorHandler.QRImage)
			account.POST("/2fa/activate", twoFactorHandler.Activate)
			account.POST("/2fa/disable", twoFactorHandler.Disable)
		}

		// Admin endpoints (require admin token)
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.Admin.Token))
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.POST("/unlock", adminHandler.Unlock)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
