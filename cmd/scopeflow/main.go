package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scopeflow/scopeflow/internal/config"
	"github.com/scopeflow/scopeflow/internal/execution"
	"github.com/scopeflow/scopeflow/internal/run"
	"github.com/scopeflow/scopeflow/pkg/adapters/events/redis"
	"github.com/scopeflow/scopeflow/pkg/adapters/instrument"
	"github.com/scopeflow/scopeflow/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/scopeflow/scopeflow/pkg/adapters/storage/redis"
	"github.com/scopeflow/scopeflow/pkg/api/grpc"
	"github.com/scopeflow/scopeflow/pkg/api/http"
	"github.com/scopeflow/scopeflow/pkg/api/websocket"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scopeflow engine",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize adapters
	eventBus, err := redis.NewStreamsEventBus(
		redisClient,
		"scopeflow-engine",
		fmt.Sprintf("scopeflow-%d", os.Getpid()),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

	pipelineStore := redisstorage.NewPipelineStore(redisClient, logger)
	runStore := redisstorage.NewRunStore(redisClient, cfg.Timeouts.RunRecordTTL, logger)

	services, err := instrument.New(&cfg.Instrument, logger)
	if err != nil {
		logger.Fatal("failed to create instrument services", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector()

	// Initialize the execution engine
	executor := execution.NewExecutor(logger, metricsCollector, execution.Options{
		WorkflowPollInterval: cfg.Engine.WorkflowPollInterval,
		WorkflowTimeout:      cfg.Engine.WorkflowTimeout,
		CommandTimeout:       cfg.Engine.CommandTimeout,
		Margin:               cfg.Engine.MarginMicrons,
	})

	manager := run.NewManager(
		executor,
		eventBus,
		runStore,
		metricsCollector,
		map[string]any{
			ports.ServiceWorkflowExecution: services.Workflows,
			ports.ServiceThresholdAnalysis: services.Analyzer,
			ports.ServiceVoxelStorage:      services.Voxels,
			ports.ServicePositionSource:    services.Positions,
			ports.ServiceCoordinateConfig:  services.Coordinates,
		},
		logger,
		cfg.Timeouts.RunTimeout,
	)

	monitor := run.NewMonitor(manager, 10*time.Second, logger)
	monitor.Start()

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:      cfg.HTTPPort,
		Manager:   manager,
		Pipelines: pipelineStore,
		Logger:    logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(eventBus, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:    cfg.GRPCPort,
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("scopeflow engine started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("instrument_provider", cfg.Instrument.Provider))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	monitor.Stop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("run manager shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("scopeflow engine shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
