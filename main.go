// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oceanvince/mangxia/config"
	"github.com/oceanvince/mangxia/dosage"
	"github.com/oceanvince/mangxia/endpoint"
	"github.com/oceanvince/mangxia/events"
	"github.com/oceanvince/mangxia/model"
	"github.com/oceanvince/mangxia/service"
	"github.com/oceanvince/mangxia/storage"
	"github.com/oceanvince/mangxia/util"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mangxia",
		Short: "Warfarin dose management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger := util.NewLogger(cfg.AppEnv, os.Stdout)

			db, err := config.ConnectDatabase()
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			if err := db.AutoMigrate(model.Models...); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Int("tables", len(model.Models)).Msg("migrations applied")
			return nil
		},
	}
}

func policyFromConfig(cfg *config.Config) (dosage.Policy, error) {
	policy := dosage.Policy{
		Default: cfg.DosageDefault,
		High:    cfg.DosageHighThreshold,
		Low:     cfg.DosageLowThreshold,
		Step:    cfg.DosageStep,
	}
	return policy, policy.Validate()
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.LoadConfig()
	gin.SetMode(cfg.GinMode)

	logger := util.NewLogger(cfg.AppEnv, os.Stdout)
	util.SetAuditLogger(logger)

	db, err := config.ConnectDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if cfg.IsTest() || cfg.IsDev() {
		if err := db.AutoMigrate(model.Models...); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := config.ConnectRedis()
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without patient lock and rate limit")
	}

	util.SetJWTSecret(cfg.JWTSecret)
	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return errors.New("AUTH_ENABLED requires JWTSECRET")
	}

	policy, err := policyFromConfig(cfg)
	if err != nil {
		return err
	}

	images, err := storage.NewImageStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("image store: %w", err)
	}
	publisher, err := events.NewPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("event publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing event publisher")
		}
	}()

	opts := service.Options{
		Policy:        policy,
		Images:        images,
		Events:        publisher,
		Timeout:       cfg.QueryTimeout,
		ImageMaxBytes: cfg.ImageMaxBytes,
		Logger:        &logger,
	}
	if rdb != nil {
		opts.Locker = util.NewPatientLocker(rdb, 0)
	}
	workflow := service.New(db, opts)

	router := endpoint.NewRouter(endpoint.RouterConfig{
		AppName:          cfg.AppName,
		DB:               db,
		Workflow:         workflow,
		Logger:           logger,
		RequestTimeout:   cfg.RequestTimeout,
		AuthEnabled:      cfg.AuthEnabled,
		MetricRateLimit:  cfg.MetricRateLimit,
		MetricRateWindow: cfg.MetricRateWindow,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return shutdown(srv, logger)
}

func shutdown(srv *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
