package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/middleware"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := initDB(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			return runMigrations(db, cfg.Database.MigrationsDir)
		},
	}
}

func reconcileCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare occupied_units with live tenancies per property",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := initDB(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			app := buildApplication(cfg, db, nil)
			defer app.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			drifts, err := app.ledger.Reconcile(ctx, repair)
			if err != nil {
				return err
			}
			if len(drifts) == 0 {
				fmt.Println("No drift found.")
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(drifts)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "overwrite occupied_units with the live tenancy count")
	return cmd
}

// tokenCmd 本地调试用的 JWT
func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if userID == "" {
				userID = uuid.New().String()
			}
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			token, err := middleware.GenerateToken(userID, role+"-"+userID[:8], role, cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id (uuid); random when empty")
	cmd.Flags().StringVar(&role, "role", constants.RoleOwner, "owner, applicant or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
