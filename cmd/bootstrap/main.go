// bootstrap provisions the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. It is an explicit one-shot step, deliberately separate
// from the login path: the server never creates accounts as a side
// effect of authentication.
// Run: go run ./cmd/bootstrap
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ErlanBelekov/account-service/config"
	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	hash, err := password.NewHasher(cfg.BcryptCost).Hash(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("hash admin password: %v", err)
	}

	repo := postgres.NewUserRepository(pool)
	admin := &domain.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	}

	if err := repo.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			log.Printf("admin %s already exists, nothing to do", cfg.AdminEmail)
			return
		}
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("admin %s created (id %s)", cfg.AdminEmail, admin.ID)
}
