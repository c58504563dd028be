package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pixelforge/forge/cmd/forgeapi/cmd/cmdutil"
	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/migrations"
	"github.com/pixelforge/forge/internal/server"
	"github.com/pixelforge/forge/internal/services/document"
	"github.com/pixelforge/forge/internal/telemetry"
	"github.com/pixelforge/forge/internal/validation"
)

// Compiled request schemas kept in the validator cache.
const schemaCacheSize = 64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Forge API server",
	Long:  `Starts the HTTP server exposing the account, project, assignment and document endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warnw("telemetry shutdown failed", "error", err)
			}
		}()

		securityMetrics, err := telemetry.NewSecurityMetrics()
		if err != nil {
			return fmt.Errorf("failed to create security metrics: %w", err)
		}
		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}

		bundle, err := cmdutil.NewBundle(cfg, logger, securityMetrics)
		if err != nil {
			return err
		}
		defer bundle.Close()

		logger.Infow("connected to database", "driver", bunx.DetectDatabaseType(cfg.DatabaseURL))

		if cfg.AutoMigrate {
			groupID, err := migrations.Apply(ctx, bundle.DB)
			if err != nil {
				return err
			}
			if groupID == 0 {
				logger.Infow("no new migrations to apply")
			} else {
				logger.Infow("applied migrations", "group", groupID)
			}
		}

		fs, err := document.NewOsFs(cfg.Documents.Dir)
		if err != nil {
			return fmt.Errorf("failed to prepare document storage: %w", err)
		}
		documents := document.NewService(bundle.Documents, bundle.Projects, fs, cfg.Documents.MaxUploadBytes).
			WithEvents(bundle.Publisher).
			WithLogger(logger.Named("documents"))
		projects := bundle.ProjectSvc.WithBlobRemover(documents)

		validator, err := validation.NewRequestValidator(schemaCacheSize)
		if err != nil {
			return fmt.Errorf("failed to create request validator: %w", err)
		}

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.CORSAllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORSAllowedOrigins
		}

		handler := server.NewH2CHandler(server.RouterOptions{
			IAM:         bundle.IAM,
			Projects:    projects,
			Coordinator: bundle.Coordinator,
			Documents:   documents,
			Validator:   validator,
			Logger:      logger.Named("http"),
			Metrics:     serverMetrics,
			CORSOptions: &corsOpts,
			HealthHandler: func(w http.ResponseWriter, r *http.Request) {
				if err := bundle.DB.PingContext(r.Context()); err != nil {
					http.Error(w, "database unavailable", http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			},
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.Infow("starting server", "addr", cfg.ServerAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case sig := <-quit:
			logger.Infow("shutting down server", "signal", sig.String())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		logger.Infow("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("auto-migrate", false, "Apply pending migrations before serving (env: FORGE_AUTO_MIGRATE)")
	_ = viper.BindPFlag("auto_migrate", serveCmd.Flags().Lookup("auto-migrate"))
	rootCmd.AddCommand(serveCmd)
}
