package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"fargoat/internal/api"
	"fargoat/internal/client"
	"fargoat/internal/config"
	"fargoat/internal/database"
	"fargoat/internal/feed"
	"fargoat/internal/metrics"
	"fargoat/internal/quest"
	"fargoat/internal/service"
	"fargoat/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting farGoat quest service")

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("db_enabled", cfg.Database.Enabled),
		zap.String("chart_endpoint", cfg.Feed.ChartEndpoint),
		zap.Duration("poll_interval", cfg.Feed.PollInterval),
		zap.Bool("submit_configured", cfg.Quest.SubmitEndpoint != ""))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// Profile directory: PostgreSQL when enabled, memory otherwise
	var (
		db     *database.DB
		pinger api.Pinger
		store  service.ProfileStore = service.NewMemoryProfileStore()
	)
	if cfg.Database.Enabled {
		db, err = connectDatabase(cfg, logger)
		if err != nil {
			logger.Warn("Database unavailable, using in-memory profile store", zap.Error(err))
		} else {
			defer db.Close()
			pinger = db
			store = db
		}
	}

	httpClient := &http.Client{Timeout: cfg.Quest.SubmitTimeout}

	var submitter quest.Submitter
	if cfg.Quest.SubmitEndpoint != "" {
		submitter = client.NewSubmissionClient(cfg.Quest.SubmitEndpoint, httpClient, logger)
	} else {
		logger.Warn("No quest submission endpoint configured, submissions will fail")
	}

	navigation, err := quest.ParseNavigationPolicy(cfg.Quest.Navigation)
	if err != nil {
		logger.Fatal("Invalid navigation policy", zap.Error(err))
	}

	sessions, err := service.NewSessionService(
		cfg.Quest.MaxSessions,
		submitter,
		cfg.Quest.SubmitTimeout,
		m,
		logger,
		quest.WithNavigationPolicy(navigation),
	)
	if err != nil {
		logger.Fatal("Failed to initialize session service", zap.Error(err))
	}
	profiles := service.NewProfileService(store, logger)

	points := service.NewPointsLedger(logger)
	if _, err := points.CreateFounder(cfg.Points.DefaultFounder, cfg.Points.DefaultAllocation, true); err != nil {
		logger.Fatal("Failed to seed founder", zap.Error(err))
	}

	// Feed
	clock := clockwork.NewRealClock()
	hub := feed.NewHub(logger, feed.WithClock(clock), feed.WithMetrics(m))
	series := feed.NewSeries(hub, feed.ChannelChartData, feed.DefaultSeriesSize)
	defer series.Close()

	var fetcher worker.ChartFetcher
	if cfg.Feed.ChartEndpoint != "" {
		fetcher = client.NewChartClient(cfg.Feed.ChartEndpoint, &http.Client{Timeout: worker.PollTimeout})
	} else {
		logger.Info("No chart endpoint configured, polling synthetic chart data")
		fetcher = worker.NewSyntheticChartSource(clock)
	}

	logger.Info("Services initialized")

	apiHandler := api.NewHandler(sessions, profiles, points, hub, series, pinger, m, logger)
	router := api.SetupRouter(apiHandler, registry, logger)

	// Create HTTP server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Start workers
	workerManager := worker.NewWorkerManager(&cfg.Feed, hub, fetcher, clock, m, logger)
	if err := workerManager.Start(); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	logger.Info("Workers started")

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	if err := workerManager.Shutdown(10 * time.Second); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}

	logger.Info("Service stopped successfully")
}

func connectDatabase(cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Database connected successfully")

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database.MigrationPath); err != nil {
		logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
	} else {
		logger.Info("Database migrations applied successfully")
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database health check passed")
	return db, nil
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
