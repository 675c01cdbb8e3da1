package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetrelay/internal/core/ports"
	"meetrelay/internal/core/services"
	httphandlers "meetrelay/internal/handlers/http"
	"meetrelay/internal/infrastructure/middleware"
	"meetrelay/internal/infrastructure/monitoring"
	"meetrelay/internal/infrastructure/reliability"
	"meetrelay/internal/infrastructure/repositories"
	relay "meetrelay/internal/infrastructure/signal"
	"meetrelay/pkg/circuitbreaker"
	"meetrelay/pkg/config"
	"meetrelay/pkg/logger"
	"meetrelay/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var configPaths = []string{
	"configs/config.yaml",
	"/etc/meetrelay/config.yaml",
	"config.yaml",
}

func main() {
	startTime := time.Now()

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logFile *logger.FileConfig
	if cfg.Logging.File.Path != "" {
		logFile = &logger.FileConfig{
			Filename:   cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		}
	}
	zapLogger, err := logger.NewWithFile(cfg.Logging.Level, logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "meetrelay-signal",
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(metricsRegistry)

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	store := newStore(cfg, repoFactory, collector, log)
	meetings := newMeetingService(cfg, store)

	registry := relay.NewRegistry(meetings, collector, log)
	broadcaster := relay.NewBroadcaster(registry, collector, log)
	wsServer := relay.NewWebSocketServer(registry, broadcaster, signalOptions(cfg), collector, log)

	checker := monitoring.NewHealthChecker()
	checker.AddStoreCheck(repoFactory.HealthCheck, 2*time.Second)
	checker.AddBreakerCheck(store.State)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	httphandlers.NewMeetingHandler(meetings, collector, log).SetupRoutes(router)
	httphandlers.NewHealthHandler(checker, wsServer).SetupRoutes(router)
	router.GET(cfg.Signal.Path, gin.WrapF(wsServer.HandleWebSocket))
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"store":  repoFactory.Backend(),
			"uptime": time.Since(startTime).String(),
		})
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))
		log.Infow("prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      withCORS(cfg, router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting meetrelay signal server",
			"address", cfg.Server.Address,
			"ws_path", cfg.Signal.Path,
			"store", repoFactory.Backend(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// hijacked sockets are invisible to http.Server.Shutdown
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		conns, rooms := wsServer.Stats()
		log.Warnw("signal connections still open at shutdown", "connections", conns, "rooms", rooms, "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error flushing traces", "error", err)
	}

	log.Info("meetrelay signal server stopped")
}

func resolveConfigPath() string {
	if path := os.Getenv("MEETRELAY_CONFIG"); path != "" {
		return path
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return configPaths[0]
}

func newStore(
	cfg *config.Config,
	factory *repositories.RepositoryFactory,
	observer reliability.StoreObserver,
	log *zap.SugaredLogger,
) *reliability.MeetingRepositoryWrapper {
	cbConfig := circuitbreaker.DefaultConfig()
	cbConfig.FailureThreshold = cfg.Store.MaxFailures
	cbConfig.Timeout = cfg.Store.ResetTimeout

	return reliability.NewMeetingRepositoryWrapper(
		factory.CreateMeetingRepository(),
		factory.Backend(),
		cfg.Store.Timeout,
		cbConfig,
		observer,
		log,
	)
}

func newMeetingService(cfg *config.Config, store ports.MeetingRepository) ports.MeetingService {
	base := services.NewMeetingService(store, cfg.Meeting.IDLength, cfg.Meeting.CreateAttempts)
	if cfg.Meeting.CacheSize <= 0 {
		return base
	}
	return services.NewCachedMeetingService(base, cfg.Meeting.CacheSize, cfg.Meeting.CacheTTL)
}

func signalOptions(cfg *config.Config) relay.Options {
	opts := relay.Options{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		SendQueueSize:  cfg.Signal.SendQueueSize,
		MaxMessageSize: cfg.Signal.MaxMessageSize,
		CheckOrigin:    cfg.Signal.CheckOriginEnabled,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		opts.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		opts.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	return opts
}

func withCORS(cfg *config.Config, h http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})(h)
}
