package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/managerapi/handlers"
)

func main() {
	appCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("Connecting to database...")
	dbpool, err := pgxpool.New(appCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("DB connect error", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(appCtx); err != nil {
		slog.Error("DB ping error", slog.Any("error", err))
		os.Exit(1)
	}
	dbQueries := database.New(dbpool)

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		if err := dbpool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "db": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	apiV1 := router.Group("/api/v1")
	handlers.SetupRoutes(apiV1, dbQueries)

	srv := &http.Server{
		Addr:         cfg.ManagerAPI.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ManagerAPI.ReadTimeout,
		WriteTimeout: cfg.ManagerAPI.WriteTimeout,
		IdleTimeout:  cfg.ManagerAPI.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	go func() {
		slog.Info("Starting provisioning API server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Provisioning API ListenAndServe error", slog.Any("error", err))
			rootCancel()
		}
	}()

	<-appCtx.Done()
	slog.Info("Shutdown signal received for provisioning API server.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Provisioning API server forced to shutdown", slog.Any("error", err))
	}

	slog.Info("Provisioning API server stopped.")
}

func setupLogging(logLevelStr string) {
	logLevel := slog.LevelInfo
	if logLevelStr == "debug" {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel, AddSource: logLevel <= slog.LevelDebug}
	baseHandler := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(logging.NewContextHandler(baseHandler)))
}
