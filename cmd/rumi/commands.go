package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/auth"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logging.Apply(cfg.Logging).Close()

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("schema_version", v).Msg("Database is up to date")
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the database and print connection and catalog stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logging.SetLevel("warn")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := database.New(cfg.DatabaseConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			start := time.Now()
			if _, err := db.Conn(ctx); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}
			if err := db.HealthCheck(ctx); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			elapsed := time.Since(start)

			out := cmd.OutOrStdout()
			stats := db.Stats()
			fmt.Fprintf(out, "driver:          %s\n", stats.Driver)
			fmt.Fprintf(out, "state:           %s\n", stats.State)
			fmt.Fprintf(out, "connected in:    %s\n", elapsed.Round(time.Millisecond))

			v, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version:  %d of %d\n", v, database.LatestSchemaVersion())
			if v < database.LatestSchemaVersion() {
				fmt.Fprintln(out, "pending migrations; run `rumi migrate`")
				return nil
			}

			counts := []struct {
				label string
				count func(context.Context, database.Filter) (int64, error)
			}{
				{"products", db.Products.Count},
				{"orders", db.Orders.Count},
				{"reviews", db.Reviews.Count},
				{"inquiries", db.Inquiries.Count},
				{"users", db.Users.Count},
			}
			for _, c := range counts {
				n, err := c.count(ctx, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-16s %s\n", c.label+":", humanize.Comma(n))
			}

			if cfg.Database.Driver == database.DriverSQLite {
				if info, err := os.Stat(cfg.Database.Path); err == nil {
					fmt.Fprintf(out, "file size:       %s (modified %s)\n",
						humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("RUMI_ADMIN_PASSWORD")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logging.Apply(cfg.Logging).Close()

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := auth.NewAuthService(db).CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				if database.IsConflict(err) {
					return fmt.Errorf("an account for %s already exists", email)
				}
				return err
			}
			log.Info().Int64("id", user.ID).Str("email", user.Email).Msg("Admin account created")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set RUMI_ADMIN_PASSWORD env var)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
