package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cancionero/internal/config"
	"cancionero/internal/handlers"
	"cancionero/internal/repository"
	"cancionero/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup Logger
	logger, logCloser := newLogger(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)

	// 3. Initialize Database
	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 4. Schema
	if repository.IsPostgres(cfg.DatabaseURL) {
		logger.Info("Running database migrations...")
		if err := repository.RunMigrations(cfg.DatabaseURL, ""); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else if err := repository.AutoMigrate(db); err != nil {
		return err
	}

	// 5. Initialize Redis, optional
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = repository.InitRedis(cfg.RedisURL, cfg.RedisPassword, 0)
		if err != nil {
			logger.Warn("Failed to connect to Redis, public catalog cache disabled", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// 6. Initialize Services
	store := repository.NewStore(db)
	auditService := services.NewAuditService(db, logger)
	catalogService := services.NewCatalogService(store, rdb, logger)
	accountService := services.NewAccountService(store, catalogService, auditService, logger)
	favoriteService := services.NewFavoriteService(store, catalogService, auditService, logger)

	// 7. Initialize Handler
	h := handlers.NewHandler(cfg, logger, db, rdb, accountService, favoriteService, catalogService)

	// 8. Setup Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := h.SetupRouter(cfg.TemplatePath, "")

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workerDone := make(chan struct{})
	go func() {
		auditService.Start(workerCtx)
		close(workerDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	workerCancel()
	<-workerDone

	logger.Info("Server exiting")
	return runErr
}
