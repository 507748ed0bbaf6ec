package main

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply pending migrations, or roll back the latest one",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer db.Close()
		defer util.SyncLogger()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		if len(args) == 1 && args[0] == "down" {
			name, err := db.Rollback(ctx)
			if err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", name)
			return nil
		}

		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
		}
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the first super admin when no staff account exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer db.Close()
		defer util.SyncLogger()

		if cfg.Seed.AdminPassword == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set")
		}

		accounts := service.NewAccountService(db, auth.NewManager(cfg.Auth))
		created, err := accounts.SeedAdmin(cmd.Context(), cfg.Seed.AdminName, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
		if err != nil {
			return err
		}

		logger := util.GetLogger()
		if !created {
			logger.Info("Staff accounts already exist, skipping seed")
			return nil
		}
		logger.Info("Seeded super admin", zap.String("email", cfg.Seed.AdminEmail))
		return nil
	},
}
