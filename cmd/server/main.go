package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apprealtime "github.com/flowstate/agency/internal/application/realtime"
	appsub "github.com/flowstate/agency/internal/application/subscription"
	"github.com/flowstate/agency/internal/domain/subscription"
	"github.com/flowstate/agency/internal/infrastructure/cache"
	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/flowstate/agency/internal/infrastructure/event"
	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/infrastructure/persistence"
	"github.com/flowstate/agency/internal/infrastructure/storage"
	"github.com/flowstate/agency/internal/infrastructure/telemetry"
	"github.com/flowstate/agency/internal/infrastructure/websocket"
	"github.com/flowstate/agency/internal/interfaces/http/handler"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/flowstate/agency/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const meterName = "github.com/flowstate/agency"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logCfg := logger.ForEnvironment(cfg.App.Env, cfg.Log.Level)
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		logCfg.Output = cfg.Log.Output
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting agency backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("instance_id", cfg.App.InstanceID),
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry
	provider, err := telemetry.NewProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		ExportLogs:        cfg.Telemetry.ExportLogs,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = provider.BridgeLogger(log, cfg.Telemetry.ServiceName)
	metrics, err := telemetry.NewSubscriptionMetrics(provider.Meter(meterName))
	if err != nil {
		log.Fatal("Failed to register subscription metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), 200*time.Millisecond)
	var dbOpts []persistence.Option
	if provider.IsEnabled() && cfg.Telemetry.TraceDatabase {
		dbOpts = append(dbOpts, persistence.WithTracing(provider.TracerProvider()))
	}
	db, err := persistence.NewDatabase(&cfg.Database, gormLog, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Driver == "sqlite" {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Redis is optional; without it plans, dedup and invalidations stay in-process
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		}
	}

	planStorage, err := storage.NewPlanStorage(cfg.Subscription, db.DB, redisClient, log)
	if err != nil {
		log.Fatal("Failed to initialize plan storage", zap.Error(err))
	}

	// Event bus for domain events raised by plan changes
	bus := event.NewInMemoryEventBus(log)

	// Subscription services
	registry := appsub.NewPlanStoreRegistry(planStorage, log, appsub.WithLoadTimeout(cfg.Subscription.StoreLoadTimeout))
	registry.Observe(metrics.PlanChanged)
	registry.Observe(appsub.PublishPlanChanges(bus, log))

	evaluator := subscription.NewEvaluator(subscription.DefaultCatalog())
	gate := appsub.NewGate(evaluator, appsub.GateConfig{
		DefaultUpgradeLabel: cfg.Subscription.DefaultUpgradeLabel,
		UpgradePath:         cfg.Subscription.UpgradePath,
	})
	queryCache := apprealtime.NewQueryCache(apprealtime.WithTTL(cfg.Subscription.CountCacheTTL))
	counter := appsub.NewCachedCounter(persistence.NewResourceCounter(db.DB), queryCache)
	entitlements := appsub.NewEntitlementService(registry, evaluator, gate, counter, log)
	upgrades := appsub.NewUpgradeService(registry, gate, log)

	// Realtime invalidation: hub fan-out plus listener
	hub := websocket.NewHub(
		websocket.WithHubLogger(log),
		websocket.WithAllowedOrigins(cfg.Realtime.AllowedOrigins),
		websocket.WithBufferSize(cfg.Realtime.ClientBufferSize),
		websocket.WithHeartbeat(cfg.Realtime.HeartbeatInterval),
		websocket.WithWriteTimeout(cfg.Realtime.WriteTimeout),
	)
	listener := apprealtime.NewListener(queryCache,
		apprealtime.WithListenerLogger(log),
		apprealtime.WithSink(hub.Broadcast),
		apprealtime.WithSink(registry.EvictOnRemoteChange(cfg.App.InstanceID)),
		apprealtime.WithRecorder(metrics),
		apprealtime.WithQueueSize(cfg.Realtime.QueueSize),
	)

	// With Redis every instance publishes to the channel and hears its own messages back;
	// without it the listener is its own publisher.
	var (
		publisher apprealtime.Publisher = listener
		source    apprealtime.EventSource
	)
	if redisClient != nil {
		channel := cache.NewRedisInvalidationChannel(redisClient,
			cache.WithChannel(cfg.Realtime.Channel),
			cache.WithChannelLogger(log),
		)
		publisher, source = channel, channel
	}
	if err := listener.Open(rootCtx, source); err != nil {
		log.Fatal("Failed to open invalidation listener", zap.Error(err))
	}

	notifier := apprealtime.NewPlanChangeNotifier(publisher, cfg.App.InstanceID, log)
	bus.Subscribe(notifier, notifier.EventTypes()...)
	if err := bus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	dedup := cache.NewIdempotencyStore(redisClient, log)
	ingest := apprealtime.NewIngestService(publisher, dedup, cfg.Realtime.DedupTTL, log)

	// HTTP
	engine := router.NewEngine(router.EngineConfig{
		HTTP: cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Logger:      log,
		ReleaseMode: cfg.App.Env == "production",
	})

	health := handler.NewHealthHandler().AddCheck("database", db.Ping)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	analyticsGuard := middleware.RequireFeature(subscription.FeatureAnalytics, middleware.FeatureConfig{
		Gate:     entitlements,
		Recorder: metrics,
		Logger:   log,
	})

	router.NewRouter(engine, router.WithGroupMiddleware(middleware.Organization())).
		RegisterPublic(health).
		Register(handler.NewPlanHandler(evaluator)).
		Register(handler.NewSubscriptionHandler(entitlements, upgrades)).
		Register(handler.NewAnalyticsHandler(entitlements, counter, queryCache, analyticsGuard)).
		Register(handler.NewRealtimeHandler(ingest, hub)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Streaming clients keep connections open, so the hub goes first
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := listener.Close(); err != nil {
		log.Error("Error closing invalidation listener", zap.Error(err))
	}
	if err := bus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	registry.Close()
	if err := dedup.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := provider.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}
	stop()

	log.Info("Server exited")
}
