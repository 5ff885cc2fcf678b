// Conduit - RealWorld backend with a resilient Postgres core.
//
// This is the main entry point for the Conduit API server. The process
// keeps a single managed Postgres connection that reconnects on its own,
// and every prepared statement reprepares itself after a reconnect, so
// the HTTP surface stays up through database restarts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/conduitapp/conduit/migrations"

	"github.com/conduitapp/conduit/internal/api"
	"github.com/conduitapp/conduit/internal/infrastructure/config"
	"github.com/conduitapp/conduit/internal/infrastructure/logging"
	"github.com/conduitapp/conduit/internal/infrastructure/postgres"
	"github.com/conduitapp/conduit/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Conduit",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Start the connection manager. It connects in the background and
	// keeps reconnecting for the life of the process.
	mgr, err := postgres.NewManager(postgres.Config{
		URL:    cfg.Database.URL,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("starting connection manager: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		if closeErr := mgr.Close(); closeErr != nil {
			log.Error("error closing database connection", "error", closeErr)
		}
	}()

	// Run migrations
	if cfg.Database.MigrateOnBoot {
		if migrateErr := mgr.ApplyMigrations(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")
	}

	// Build the statement sets. Preparing up front surfaces SQL errors
	// at boot instead of on the first request.
	st := store.New(mgr)
	if cfg.Database.PrepareOnBoot {
		if prepErr := st.Prepare(ctx); prepErr != nil {
			return fmt.Errorf("preparing statements: %w", prepErr)
		}
		log.Info("statements prepared")
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Users:    st.Users,
		Articles: st.Articles,
		Comments: st.Comments,
		Tags:     st.Tags,
		DB:       mgr,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Connection manager

	log.Info("Conduit stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CONDUIT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CONDUIT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
