package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denishrana09/smpp-gateway/internal/availability"
	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/internal/database"
	"github.com/denishrana09/smpp-gateway/internal/dispatch"
	"github.com/denishrana09/smpp-gateway/internal/gateway"
	"github.com/denishrana09/smpp-gateway/internal/httpserver"
	"github.com/denishrana09/smpp-gateway/internal/logging"
	"github.com/denishrana09/smpp-gateway/internal/queue"
	"github.com/denishrana09/smpp-gateway/internal/routing"
	"github.com/denishrana09/smpp-gateway/internal/vendorconn"
)

func main() {
	appCtx, rootCancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer rootCancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel <= slog.LevelDebug,
	}
	baseHandler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(logging.NewContextHandler(baseHandler))
	slog.SetDefault(logger)
	slog.Info("Logging initialized", "level", logLevel.String())

	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		slog.Error("Failed to load routing configuration", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Routing configuration loaded",
		slog.Int("clients", len(routes.Clients)),
		slog.Int("vendors", len(routes.VendorIDs())))

	slog.Info("Connecting to database...")
	dbpool, err := pgxpool.New(appCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(appCtx); err != nil {
		slog.Error("Failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Database connection pool established")
	dbQueries := database.New(dbpool)

	if err := queue.EnsureTopics(appCtx, cfg.Kafka); err != nil {
		slog.Error("Failed to provision kafka topics", slog.Any("error", err))
		os.Exit(1)
	}
	producer := queue.NewProducer(cfg.Kafka)

	var snapshotStore availability.SnapshotStore
	var redisClient *redis.Client
	if cfg.Cache.UseRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		if err := redisClient.Ping(appCtx).Err(); err != nil {
			slog.Error("Failed to ping redis", slog.Any("error", err))
			os.Exit(1)
		}
		snapshotStore = availability.NewRedisStore(redisClient, cfg.Cache.Expiry)
		slog.Info("Using redis availability store", slog.String("addr", cfg.Cache.RedisAddr))
	} else {
		snapshotStore = availability.NewMemoryStore()
	}

	cache := availability.NewCache(dbQueries, snapshotStore, cfg.Cache.RefreshInterval)

	smppServer := gateway.NewServer(cfg.Server, dbQueries, producer)

	vendorManager := vendorconn.NewManager(
		cfg.Vendor,
		dbQueries,
		vendorconn.NewSMPPFactory(cfg.Vendor),
		producer,
		smppServer,
	)
	for _, vendorID := range routes.VendorIDs() {
		if err := vendorManager.ConnectToVendor(appCtx, vendorID); err != nil {
			// The vendor's hosts keep retrying in the background; losing
			// one vendor at boot must not take the gateway down.
			slog.Error("Failed to initialise vendor pool",
				slog.String("vendor_id", vendorID), slog.Any("error", err))
		}
	}

	engine := routing.NewEngine(cache)
	dispatcher := dispatch.NewDispatcher(routes, engine, vendorManager)
	consumer := queue.NewIncomingConsumer(cfg.Kafka, dispatcher.Dispatch)

	controlAPI := httpserver.NewServer(cfg.HTTP, dbQueries, cache, vendorManager)

	var wg sync.WaitGroup
	slog.Info("Starting application components...")

	wg.Add(1)
	go func() {
		defer wg.Done()
		cache.Run(appCtx)
		slog.Info("Availability cache stopped.")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := smppServer.ListenAndServe(); err != nil {
			slog.Error("SMPP gateway failed", slog.Any("error", err))
			rootCancel()
		}
		slog.Info("SMPP gateway stopped.")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(appCtx); err != nil {
			slog.Error("Queue consumer failed", slog.Any("error", err))
			rootCancel()
		}
		slog.Info("Queue consumer stopped.")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := controlAPI.ListenAndServe(); err != nil {
			slog.Error("Control API failed", slog.Any("error", err))
			rootCancel()
		}
		slog.Info("Control API stopped.")
	}()

	<-appCtx.Done()
	slog.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	var shutdownWg sync.WaitGroup

	shutdownWg.Add(1)
	go func() {
		defer shutdownWg.Done()
		if err := controlAPI.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Error during control API shutdown", slog.Any("error", err))
		}
	}()

	shutdownWg.Add(1)
	go func() {
		defer shutdownWg.Done()
		if err := smppServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Error during SMPP gateway shutdown", slog.Any("error", err))
		}
	}()

	shutdownWg.Wait()
	slog.Info("Servers stopped accepting new connections.")

	if err := consumer.Close(); err != nil {
		slog.Warn("Error closing queue consumer", slog.Any("error", err))
	}

	if err := vendorManager.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Error during vendor manager shutdown", slog.Any("error", err))
	}

	if err := producer.Close(); err != nil {
		slog.Warn("Error closing queue producer", slog.Any("error", err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Warn("Error closing redis client", slog.Any("error", err))
		}
	}

	wg.Wait()

	slog.Info("Closing database pool...")
	dbpool.Close()
	slog.Info("Gateway gracefully stopped.")
}
