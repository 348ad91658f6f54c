package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"rfpmanager/db"
	"rfpmanager/db/migrations"
	"rfpmanager/internal/auth"
	"rfpmanager/models"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return migrations.Run(cfg.PostgresConn, log.New(os.Stdout, "migrate: ", log.LstdFlags))
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and sample RFPs",
		Long: `Create the admin user from ADMIN_EMAIL / ADMIN_PASSWORD (if it does not exist)
and insert sample RFPs owned by it. Existing sample titles are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
				return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set for seeding")
			}
			logger := log.New(os.Stdout, "seed: ", log.LstdFlags)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			dbConn, err := db.Connect(ctx, cfg.PostgresConn)
			if err != nil {
				return err
			}
			defer dbConn.Close()
			if err := migrations.Up(dbConn.DB, logger); err != nil {
				return err
			}

			store := db.NewStorage(dbConn)
			admin, err := ensureAdmin(ctx, store, cfg.AdminEmail, cfg.AdminPassword)
			if err != nil {
				return err
			}
			logger.Printf("admin user: %s (%s)", admin.Email, admin.ID)

			created, err := store.SeedSampleRFPs(ctx, admin.ID, time.Now())
			if err != nil {
				return err
			}
			logger.Printf("Created %d of %d sample RFPs", created, db.SampleRFPCount())
			return nil
		},
	}
}

// ensureAdmin возвращает существующего пользователя с этим email или создает администратора.
func ensureAdmin(ctx context.Context, store *db.Storage, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := store.GetUserByEmail(ctx, email)
	if err == nil {
		if u.Role != models.RoleAdmin {
			return nil, fmt.Errorf("user %s exists but is not an admin", email)
		}
		return u, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u = &models.User{
		ID:           models.NewID(),
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return u, nil
}
