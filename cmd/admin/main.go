package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpetrov/fleetgate/internal/auth"
	"github.com/mpetrov/fleetgate/internal/config"
	"github.com/mpetrov/fleetgate/internal/db"
	"github.com/mpetrov/fleetgate/internal/db/repository"
	"github.com/mpetrov/fleetgate/internal/models"
	"github.com/mpetrov/fleetgate/internal/policy"
)

var (
	configPath string
	cfg        *config.Config
	database   *db.DB
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Fleetgate administration tool",
	Long:  "Administrative tool for managing Fleetgate users, two-factor enrollment, and lockouts",
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  createUser,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  listUsers,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <identifier>",
	Short: "Lift an active lockout and reset the failure counter",
	Args:  cobra.ExactArgs(1),
	RunE:  unlock,
}

var (
	username   string
	password   string
	role       string
	enabled    bool
	withTOTP   bool
	skipPolicy bool
)

func init() {
	// Root flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/fleetgate/config.yaml", "Config file path")

	// User create flags
	userCreateCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	userCreateCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	userCreateCmd.Flags().StringVar(&role, "role", models.RoleDispatcher, "User role (admin, dispatcher, accountant)")
	userCreateCmd.Flags().BoolVar(&enabled, "enabled", true, "Enable user account")
	userCreateCmd.Flags().BoolVar(&withTOTP, "with-totp", false, "Provision a TOTP secret for the new user")
	userCreateCmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "Skip password complexity validation")

	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")

	// Add commands
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(unlockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initDB() error {
	// Load configuration
	var err error
	cfg, err = config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Connect to database
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func createUser(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	if !skipPolicy {
		validator := policy.NewPasswordValidator(policy.Rules{
			MinLength:     cfg.Security.Password.MinLength,
			RequireUpper:  cfg.Security.Password.RequireUpper,
			RequireLower:  cfg.Security.Password.RequireLower,
			RequireDigit:  cfg.Security.Password.RequireDigit,
			RequireSymbol: cfg.Security.Password.RequireSymbol,
		})
		if result := validator.Validate(password); !result.Valid {
			return fmt.Errorf("password rejected: %s", result.Message)
		}
	}

	// Hash password
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)
	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Create user
	userRepo := repository.NewUserRepository(database.DB)
	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		Enabled:      enabled,
	}

	if err := userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("User ID: %d\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Role: %s\n", user.Role)
	fmt.Printf("Enabled: %t\n", user.Enabled)

	if withTOTP {
		provisioner := auth.NewTOTPProvisioner(cfg.Security.TOTPIssuer)
		enrollment, err := provisioner.GenerateSecret(username)
		if err != nil {
			return fmt.Errorf("failed to generate TOTP secret: %w", err)
		}
		if err := userRepo.SetPendingTwoFactorSecret(user.ID, enrollment.Secret); err != nil {
			return fmt.Errorf("failed to store TOTP secret: %w", err)
		}

		// Shown once, on the operator's terminal only.
		fmt.Printf("\nTOTP Secret: %s\n", enrollment.Secret)
		fmt.Printf("Provisioning URI: %s\n", enrollment.ProvisioningURI)
		fmt.Printf("\nScan the URI with a TOTP app, then activate via the API\n")
	}

	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	userRepo := repository.NewUserRepository(database.DB)
	users, err := userRepo.List()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("\nTotal users: %d\n\n", len(users))
	fmt.Printf("%-5s %-20s %-12s %-8s %-5s %s\n", "ID", "Username", "Role", "Enabled", "2FA", "Created")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, user := range users {
		enabledStr := "No"
		if user.Enabled {
			enabledStr = "Yes"
		}
		twoFactorStr := "No"
		if user.TwoFactorEnabled {
			twoFactorStr = "Yes"
		}
		fmt.Printf("%-5d %-20s %-12s %-8s %-5s %s\n",
			user.ID,
			user.Username,
			user.Role,
			enabledStr,
			twoFactorStr,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func unlock(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer database.Close()

	attemptRepo := repository.NewAttemptRepository(database.DB)
	tracker := auth.NewLoginAttemptTracker(attemptRepo, cfg.Security.LockoutThreshold, cfg.GetLockoutDuration())

	if err := tracker.Clear(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}

	fmt.Printf("Lockout cleared for %s\n", args[0])
	return nil
}
