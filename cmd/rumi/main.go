package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/auth"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/logging"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/maintenance"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rumi",
		Short:         "RUMI by Manisha - storefront API server",
		Long:          `rumi serves the RUMI by Manisha storefront API: catalog, orders, reviews, inquiries and the admin surface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (or set RUMI_CONFIG env var)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (trace, debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd(), checkCmd(), createAdminCmd())

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rumi %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config or RUMI_CONFIG and
// applies the log level override.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openDatabase builds the manager and migrates the schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.DatabaseConfig())
	if err != nil {
		return nil, err
	}
	if err := db.Prepare(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile := logging.Apply(cfg.Logging)
	defer logFile.Close()

	log.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Str("driver", cfg.Database.Driver).
		Msg("Starting RUMI storefront")

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if first, err := db.IsFirstRun(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to check for an admin account")
	} else if first {
		log.Warn().Msg("No admin account exists yet. Create one with `rumi create-admin`.")
	}

	authService := auth.NewAuthService(db, auth.WithSessionDuration(cfg.SessionDuration()))

	scheduler := maintenance.New(db, cfg.Maintenance)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance scheduler")
	}
	defer scheduler.Stop()

	// Only the log level is reloaded live; everything else needs a restart.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, config.DefaultReloadDelay, func(next *config.Config) {
			level := next.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			logging.SetLevel(level)
			log.Info().Str("level", level).Msg("Configuration reloaded")
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create config watcher")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to watch config file")
		} else {
			defer watcher.Stop()
		}
	}

	server := web.NewServer(db, authService, scheduler, cfg.Server)
	server.SetVersionInfo(version, commit, date)

	if err := server.Start(ctx, cfg.Addr()); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("RUMI storefront stopped")
	return nil
}
