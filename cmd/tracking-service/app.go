package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"scentry/internal/commerce"
	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/dedup"
	"scentry/internal/dispatch"
	"scentry/internal/logger"
	"scentry/internal/outbox"
	"scentry/internal/payment"
	"scentry/internal/sink"
	"scentry/internal/tracking"
	"scentry/pkg/bootstrap"
	"scentry/pkg/circuitbreaker"
	"scentry/pkg/health"
	"scentry/pkg/metrics"
	"scentry/pkg/middleware"
	"scentry/pkg/ratelimit"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	store       outbox.Store
	sweeper     *outbox.Sweeper
	service     *tracking.Service
	server      *http.Server
	router      *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("tracking-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()
	if a.Config.Broker.Type == "kafka" {
		metrics.RegisterBrokerMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}

	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initPipeline() error {
	if a.redis != nil {
		a.store = outbox.NewRedisStore(a.redis)
	} else {
		a.Logger.Warnw("Redis not configured, outbox is in-memory and lost on restart")
		a.store = outbox.NewMemoryStore()
	}

	var dedupRepo dedup.Repository
	if a.redis != nil {
		dedupRepo = dedup.NewRepository(a.redis)
	}
	guard := dedup.NewGuard(dedupRepo, a.Config.Dedup, a.Logger)

	capiSink := sink.NewConversionsAPISink(a.Config.Sinks.ConversionsAPI, a.Logger)

	var attribution sink.Sink = sink.NewAttributionSink(a.Config.Sinks.Attribution, a.Logger)
	if a.Config.CircuitBreaker.Enabled {
		attribution = sink.WrapWithBreaker(attribution, circuitbreaker.Config{
			Name:        "attribution",
			MaxRequests: a.Config.CircuitBreaker.MaxRequests,
			Interval:    a.Config.CircuitBreaker.Interval,
			Timeout:     a.Config.CircuitBreaker.Timeout,
		}, a.Logger)
		a.Logger.Infow("Circuit breaker enabled for attribution sink")
	}

	sinks := []sink.Sink{
		sink.NewPixelSink(a.Config.Sinks.Pixel, a.Logger),
		capiSink,
		attribution,
	}

	dispatcher := dispatch.NewDispatcher(sinks, a.store, a.Logger)
	a.sweeper = outbox.NewSweeper(a.store, sinks, a.Config.Outbox, a.Logger)

	payments := payment.NewClient(a.Config.Payment, a.Logger)

	var commerceClient *commerce.Client
	if a.Config.Commerce.StoreURL != "" {
		commerceClient = commerce.NewClient(a.Config.Commerce, a.Logger)
	} else {
		a.Logger.Warnw("Commerce backend not configured, orders will not be created")
	}

	topic := a.Config.Broker.Kafka.ConversionTopic
	if topic == "" {
		topic = constants.DefaultConversionTopic
	}

	a.service = tracking.NewService(tracking.ServiceParams{
		Payments:   payments,
		Commerce:   commerceClient,
		Dispatcher: dispatcher,
		CAPI:       capiSink,
		Guard:      guard,
		Producer:   a.Producer,
		Topic:      topic,
		Logger:     a.Logger,
	})

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.RateLimit.RPS,
			Burst:           a.Config.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	tolerance := a.Config.Payment.Webhook.Tolerance
	if tolerance == 0 {
		tolerance = payment.DefaultTolerance
	}
	verifier := payment.NewVerifier(a.Config.Payment.Webhook.Secret, tolerance)

	handler := tracking.NewHandler(
		a.service,
		a.sweeper,
		verifier,
		a.Config.Payment.Webhook.InsecureSkipVerify,
		a.Logger,
	)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewOutboxChecker(a.store.Size))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	// Startup sweep: anything parked before the last shutdown gets a retry
	// without waiting for a sweep request.
	g.Go(func() error {
		a.sweeper.Sweep(gCtx)
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// SweepOnce runs a single sweep, used by the sweep subcommand.
func (a *App) SweepOnce(ctx context.Context) {
	a.sweeper.Sweep(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.redis)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
