// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/browser"
	"github.com/socialgenius/loginforge/internal/diagnostics"
	"github.com/socialgenius/loginforge/internal/observability"
	"github.com/socialgenius/loginforge/internal/server"
	"github.com/socialgenius/loginforge/internal/store"
	"github.com/socialgenius/loginforge/internal/tasks"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP task API and serves login attempts",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
				return err
			}
			return viper.BindPFlag("database.dsn", cmd.Flags().Lookup("dsn"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context from main, cancelled on SIGINT/SIGTERM.
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appConfig

			cfg.Server.Addr = viper.GetString("server.addr")
			cfg.Database.DSN = viper.GetString("database.dsn")

			components, err := initializeServeComponents(ctx, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			srv := server.New(cfg.Server, components.Runner, components.Registry, components.Recorder, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("HTTP server failed", zap.Error(err))
					return err
				}
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			}

			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
			}
			return nil
		},
	}

	serveCmd.Flags().String("addr", ":5055", "Listen address for the HTTP API. (Overrides config/env)")
	serveCmd.Flags().String("dsn", "", "PostgreSQL DSN for persisting outcomes. Empty disables persistence. (Overrides config/env)")

	return serveCmd
}

// serveComponents holds initialized services.
type serveComponents struct {
	Engine   *browser.Engine
	Recorder *diagnostics.Recorder
	Registry *tasks.Registry
	Runner   *tasks.Runner
	DBPool   *pgxpool.Pool
}

// Shutdown gracefully closes all components.
func (sc *serveComponents) Shutdown() {
	if sc.Engine != nil {
		sc.Engine.Close()
	}
	if sc.DBPool != nil {
		sc.DBPool.Close()
	}
}

// initializeServeComponents handles dependency injection.
func initializeServeComponents(ctx context.Context, logger *zap.Logger) (*serveComponents, error) {
	cfg := appConfig
	components := &serveComponents{}

	// 1. Browser engine, shared by every attempt.
	engine, err := browser.NewEngine(ctx, cfg.Browser, logger)
	if err != nil {
		return components, err
	}
	components.Engine = engine
	builder := browser.NewBuilder(engine, logger, nil)

	// 2. Diagnostics. An empty base dir disables capture.
	screenshotsDir := ""
	if cfg.Diagnostics.Enabled {
		screenshotsDir = cfg.Diagnostics.ScreenshotsDir
	}
	components.Recorder = diagnostics.NewRecorder(screenshotsDir, logger)

	// 3. Task registry and its retention janitor.
	components.Registry = tasks.NewRegistry(cfg.Server.TaskRetention, logger)
	components.Registry.StartJanitor(ctx)

	// 4. Optional persistence.
	var dbStore tasks.Store
	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = pool

		st, err := store.New(ctx, pool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize store: %w", err)
		}
		dbStore = st
	} else {
		logger.Info("No database DSN configured, outcomes will not be persisted")
	}

	components.Runner = tasks.NewRunner(cfg, components.Registry, tasks.BrowserFactory(builder), components.Recorder, dbStore, logger)
	return components, nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
