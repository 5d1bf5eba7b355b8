package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/schoolpay/backend/internal/application/billing"
	"github.com/schoolpay/backend/internal/domain/shared"
	stripebilling "github.com/schoolpay/backend/internal/infrastructure/billing"
	"github.com/schoolpay/backend/internal/infrastructure/cache"
	"github.com/schoolpay/backend/internal/infrastructure/config"
	"github.com/schoolpay/backend/internal/infrastructure/logger"
	"github.com/schoolpay/backend/internal/infrastructure/persistence"
	"github.com/schoolpay/backend/internal/infrastructure/scheduler"
	"github.com/schoolpay/backend/internal/infrastructure/telemetry"
	"github.com/schoolpay/backend/internal/interfaces/http/handler"
	"github.com/schoolpay/backend/internal/interfaces/http/middleware"
	"github.com/schoolpay/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromConfig(cfg.App, cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting SchoolPay billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry: traces, metrics, log export and profiling are no-ops unless enabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() { _ = loggerProvider.Shutdown(context.Background()) }()
	log = loggerProvider.Bridge(log, cfg.Log.Level)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() { _ = profiler.Stop() }()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter(telemetry.BillingMeterName))
	if err != nil {
		log.Fatal("Failed to register billing metrics", zap.Error(err))
	}

	// Database, with gorm logging through zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry), log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	organizationRepo := persistence.NewGormOrganizationRepository(db.DB)
	enrollmentRepo := persistence.NewGormEnrollmentRepository(db.DB)
	guardianProfileRepo := persistence.NewGormGuardianProfileRepository(db.DB)
	chargeRepo := persistence.NewGormMonthlyChargeRepository(db.DB)

	// Payment provider
	charger, err := stripebilling.NewStripeCharger(&cfg.Stripe, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe charger", zap.Error(err))
	}

	// Billing service
	clock := shared.NewSystemClock(cfg.Billing.Location())
	selector := billingapp.NewEligibilitySelector(enrollmentRepo, guardianProfileRepo, log)
	executor := billingapp.NewPaymentAttemptExecutor(charger, chargeRepo, clock, log)

	opts := []billingapp.MonthlyBillingOption{billingapp.WithRunRecorder(billingMetrics)}
	if cfg.Billing.RunGuardEnabled {
		guard, err := cache.NewRunGuardFactory(cfg.Redis, cfg.Billing.RunGuardTTL, cache.WithLogger(log)).CreateGuard()
		if err != nil {
			log.Fatal("Failed to create billing run guard", zap.Error(err))
		}
		defer func() { _ = guard.Close() }()
		opts = append(opts, billingapp.WithRunGuard(guard))
	}

	billingService := billingapp.NewMonthlyBillingService(
		organizationRepo,
		selector,
		chargeRepo,
		executor,
		clock,
		log,
		billingapp.MonthlyBillingConfig{
			Currency:             cfg.Billing.Currency,
			MaxConcurrentTenants: cfg.Billing.MaxConcurrentTenants,
			RetryFailedCharges:   cfg.Billing.RetryFailedCharges,
		},
		opts...,
	)

	// In-process scheduler for single-node deployments
	if cfg.Scheduler.Enabled {
		trigger, err := scheduler.NewBillingCronTrigger(scheduler.BillingCronTriggerConfig{
			Schedule:   cfg.Scheduler.CronSchedule,
			JobTimeout: cfg.Scheduler.JobTimeout,
			Location:   cfg.Billing.Location(),
		}, billingService, log)
		if err != nil {
			log.Fatal("Failed to create billing cron trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start billing cron trigger", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Error("Error stopping billing cron trigger", zap.Error(err))
			}
		}()
	}

	if cfg.Billing.CronSecret == "" {
		log.Warn("billing.cron_secret is empty, every billing API request will be rejected")
	}

	engine, err := newEngine(cfg, log, meterProvider, db, billingService, chargeRepo)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the middleware stack and all routes
func newEngine(
	cfg *config.Config,
	log *zap.Logger,
	meterProvider *telemetry.MeterProvider,
	db handler.DatabasePinger,
	runner handler.BillingRunner,
	charges handler.ChargeLedgerReader,
) (*gin.Engine, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	var httpMeter = meterProvider.Meter("http.server")
	if !meterProvider.IsEnabled() {
		httpMeter = nil
	}
	httpMetrics, err := middleware.HTTPMetrics(httpMeter)
	if err != nil {
		return nil, err
	}

	// Order matters: request ID first so every later layer can log and tag it
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(httpMetrics)
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", handler.NewHealthHandler(db).Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.BillingRoutes(
		cfg.Billing.CronSecret,
		handler.NewBillingRunHandler(runner, handler.WithRunTimeout(cfg.Scheduler.JobTimeout)),
		handler.NewChargeLedgerHandler(charges),
	))
	r.Setup()

	return engine, nil
}
