// Seeding tool that creates demo portal accounts for local development.
// Usage (env overrides):
//
//	SEED_CUSTOMER_USERNAME=alice_lee SEED_CUSTOMER_PASSWORD='Str0ng!Pass'
//	SEED_EMPLOYEE_USERNAME=j_verifier SEED_EMPLOYEE_PASSWORD='Str0ng!Pass'
//
// Reads DATABASE_URL and other core config via swiftpay/pkg/config
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"swiftpay/internal/domain"
	"swiftpay/internal/repository/postgres"
	"swiftpay/pkg/config"
	"swiftpay/pkg/errors"
	"swiftpay/pkg/logger"
)

func main() {
	log := logger.New("seed-users")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	ctx := context.Background()

	ensureUser(ctx, userRepo, log, &domain.User{
		Username:      getenv("SEED_CUSTOMER_USERNAME", "alice_lee"),
		FullName:      getenv("SEED_CUSTOMER_NAME", "Alice Lee"),
		Role:          domain.RoleCustomer,
		AccountNumber: getenv("SEED_CUSTOMER_ACCOUNT", "1234567890"),
	}, getenv("SEED_CUSTOMER_PASSWORD", "Customer#2024"))

	ensureUser(ctx, userRepo, log, &domain.User{
		Username: getenv("SEED_EMPLOYEE_USERNAME", "j_verifier"),
		FullName: getenv("SEED_EMPLOYEE_NAME", "Jordan Verifier"),
		Role:     domain.RoleEmployee,
	}, getenv("SEED_EMPLOYEE_PASSWORD", "Employee#2024"))

	fmt.Println("OK: portal users seeded")
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func ensureUser(ctx context.Context, repo *postgres.UserRepository, log logger.Logger, u *domain.User, password string) {
	if existing, err := repo.FindByUsername(ctx, u.Username); err == nil {
		log.Info("User already exists, skipping", map[string]interface{}{
			"username": existing.Username,
			"role":     existing.Role,
		})
		return
	} else if err != errors.ErrUserNotFound {
		log.Fatal("FindByUsername failed", map[string]interface{}{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	u.ID = uuid.New()
	u.PasswordHash = string(hash)
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := repo.Create(ctx, u); err != nil {
		log.Fatal("Failed to create user", map[string]interface{}{
			"username": u.Username,
			"error":    err.Error(),
		})
	}

	log.Info("User created", map[string]interface{}{
		"username": u.Username,
		"role":     u.Role,
	})
}
