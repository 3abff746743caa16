package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mpetrov/fleetgate/internal/api"
	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/config"
	"github.com/mpetrov/fleetgate/internal/db"
	"github.com/mpetrov/fleetgate/internal/db/repository"
	"github.com/mpetrov/fleetgate/internal/policy"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "/etc/fleetgate/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Fleetgate Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	log.Printf("Starting Fleetgate Server %s (commit: %s)", Version, Commit)

	// Load configuration. Validation refuses to start without a signing
	// key, so token issuance cannot silently degrade at request time.
	log.Printf("Loading configuration from %s", *configPath)
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	log.Printf("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)
	attemptRepo := repository.NewAttemptRepository(database.DB)

	// Initialize the credential core
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)
	validator := policy.NewPasswordValidator(policy.Rules{
		MinLength:     cfg.Security.Password.MinLength,
		RequireUpper:  cfg.Security.Password.RequireUpper,
		RequireLower:  cfg.Security.Password.RequireLower,
		RequireDigit:  cfg.Security.Password.RequireDigit,
		RequireSymbol: cfg.Security.Password.RequireSymbol,
	})
	provisioner := auth.NewTOTPProvisioner(cfg.Security.TOTPIssuer)
	tracker := auth.NewLoginAttemptTracker(attemptRepo, cfg.Security.LockoutThreshold, cfg.GetLockoutDuration())

	issuer, err := auth.NewTokenIssuer([]byte(cfg.Security.SigningKey))
	if err != nil {
		log.Fatalf("Failed to initialize token issuer: %v", err)
	}

	if cfg.Security.AllowLegacyPlaintext {
		log.Printf("WARNING: legacy plaintext credential migration path is enabled")
	}

	// Create HTTP server
	server := api.NewServer(
		cfg,
		userRepo,
		hasher,
		validator,
		provisioner,
		tracker,
		issuer,
	)

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Fleetgate Server is running")

	// Wait for interrupt signal
	<-quit
	log.Printf("Shutting down server...")

	// Cleanup
	database.Close()

	log.Printf("Server stopped")
}
