package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/shin/internal/api"
	"github.com/yourusername/shin/internal/cache"
	"github.com/yourusername/shin/internal/config"
	"github.com/yourusername/shin/internal/database"
	"github.com/yourusername/shin/internal/metrics"
	"github.com/yourusername/shin/internal/repository"
	"github.com/yourusername/shin/internal/scheduler"
	"github.com/yourusername/shin/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the implied probability API",
	Long: `Run the HTTP API. When the database is enabled, stored odds are
de-margined on the configured schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadSecrets(ctx); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	metrics.InitRegistry()

	var (
		db    *database.DB
		repos = &repository.Repositories{}
	)
	if cfg.Database.Enabled {
		var err error
		db, repos, err = connectDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	resultCache := cache.NewResultCache(cfg.CacheTTL(), cfg.Cache.MaxSize)
	svc := service.NewDemarginService(repos.Odds, repos.Probability, resultCache, solverOptions(), logger)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(svc, logger)
		if err := sched.ScheduleDemargin(cfg.Scheduler.Schedule, cfg.Lookback()); err != nil {
			return fmt.Errorf("failed to schedule de-margining: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	apiCfg := api.Config{
		ServiceName:    cfg.App.Name,
		Version:        Version,
		Commit:         GitCommit,
		Port:           cfg.API.Port,
		Logger:         logger,
		Calculator:     svc,
		Store:          svc,
		RateLimit:      cfg.API.RateLimit,
		Burst:          cfg.API.Burst,
		RequestTimeout: time.Duration(cfg.API.RequestTimeoutSeconds) * time.Second,
	}
	if db != nil {
		apiCfg.DB = db
	}
	if cfg.Metrics.Enabled {
		apiCfg.MetricsPath = cfg.Metrics.Path
	}

	server, err := api.NewServer(apiCfg)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	server.SetReady(true)

	logger.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.App.Environment,
		"database":    cfg.Database.Enabled,
		"scheduler":   cfg.Scheduler.Enabled,
	}).Info("Shin service started")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	if sched != nil {
		if err := sched.Stop(); err != nil {
			logger.WithError(err).Error("Error stopping scheduler")
		}
	}
	if err := server.Shutdown(); err != nil {
		logger.WithError(err).Error("Error during api server shutdown")
	}
	svc.CacheStats()

	logger.Info("Shin service shut down successfully")
	return nil
}

// loadSecrets overlays database credentials from AWS Secrets Manager when enabled
func loadSecrets(ctx context.Context) error {
	if os.Getenv("AWS_SECRETS_ENABLED") != "true" {
		return nil
	}

	region := os.Getenv("AWS_REGION")
	secretName := os.Getenv("AWS_SECRET_NAME")
	if region == "" || secretName == "" {
		return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
	}

	if err := config.LoadSecretsFromAWS(ctx, cfg, region, secretName); err != nil {
		return fmt.Errorf("failed to load secrets from AWS: %w", err)
	}
	logger.WithField("secret", secretName).Info("Loaded secrets from AWS Secrets Manager")
	return nil
}

func connectDatabase(ctx context.Context) (*database.DB, *repository.Repositories, error) {
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Initialize(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	}).Info("Connected to database")
	return db, repos, nil
}
