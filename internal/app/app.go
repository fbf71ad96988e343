package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelora/skybook/internal/cache"
	"github.com/avelora/skybook/internal/client"
	"github.com/avelora/skybook/internal/config"
	"github.com/avelora/skybook/internal/event"
	handler "github.com/avelora/skybook/internal/handler/http"
	"github.com/avelora/skybook/internal/service"
	"github.com/avelora/skybook/pkg/database"
	"github.com/avelora/skybook/pkg/health"
	"github.com/avelora/skybook/pkg/httpclient"
	pkgkafka "github.com/avelora/skybook/pkg/kafka"
	"github.com/avelora/skybook/pkg/middleware"
	"github.com/avelora/skybook/pkg/tracing"
)

// App wires together all dependencies and runs the booking gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "booking-gateway",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis for the flight catalog cache. The gateway works
	// without it: the cache layer degrades to direct catalog calls.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, flight cache disabled",
			slog.String("host", cfg.RedisHost),
			slog.String("error", err.Error()),
		)
		redisClient = nil
	} else {
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
	}

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	eventProducer := event.NewProducer(producer, logger)

	// Create HTTP client with circuit breaker for the leaf service calls.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "booking-leaves",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
		WithFallback(service.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)

	// Build the leaf clients.
	flightsClient := client.NewFlightsClient(cfg.FlightServiceURL, cbClient, logger)
	ticketsClient := client.NewTicketsClient(cfg.TicketServiceURL, cbClient, logger)
	privilegeClient := client.NewPrivilegeClient(cfg.PrivilegeServiceURL, cbClient, logger)

	var flights client.Flights = flightsClient
	if redisClient != nil {
		flights = cache.NewFlightCache(
			flightsClient,
			redisClient,
			time.Duration(cfg.FlightCacheTTLSecs)*time.Second,
			logger,
		)
	}

	bookingService := service.NewBookingService(
		flights,
		ticketsClient,
		privilegeClient,
		eventProducer,
		logger,
		service.SagaTimeouts{
			FlightTimeout:       time.Duration(cfg.SagaFlightTimeout) * time.Second,
			TicketTimeout:       time.Duration(cfg.SagaTicketTimeout) * time.Second,
			PrivilegeTimeout:    time.Duration(cfg.SagaPrivilegeTimeout) * time.Second,
			CompensationTimeout: time.Duration(cfg.SagaCompensationTimeout) * time.Second,
		},
	)

	// Health checks. The gateway cannot serve without its leaves; Redis and
	// Kafka only degrade behavior.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("flights", flightsClient.Ping)
	healthHandler.RegisterCritical("tickets", ticketsClient.Ping)
	healthHandler.RegisterCritical("privilege", privilegeClient.Ping)
	healthHandler.RegisterNonCritical("kafka", producer.Ping)
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = cfg.Environment
	router := handler.NewRouter(bookingService, healthHandler, logger, handler.RouterConfig{
		ServiceName:       "booking-gateway",
		CORS:              corsCfg,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		FlightCacheMaxAge: cfg.FlightCacheControlMaxAge,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests and their compensations)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests, bounded at 5s.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Redis client.
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
