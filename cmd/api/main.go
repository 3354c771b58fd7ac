package main

// @title BookWorm Recommendations API
// @version 1.0
// @description Personalized book recommendations with engagement tracking.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/bookworm/config"
	apierrors "github.com/jordanlanch/bookworm/pkg/api/errors"
	"github.com/jordanlanch/bookworm/pkg/api/handlers"
	"github.com/jordanlanch/bookworm/pkg/app"
	"github.com/jordanlanch/bookworm/pkg/logger"
	custommiddleware "github.com/jordanlanch/bookworm/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	appLogger := logger.New(cfg.LogLevel)
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLogger, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("❌ Failed to start: %v", err)
	}
	defer a.Close()
	prometheus.MustRegister(collectors.NewDBStatsCollector(a.DB.DB, "bookworm"))

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apierrors.HTTPErrorHandler(appLogger)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLogger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(a.Metrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(middleware.Gzip())

	checks := map[string]handlers.Pinger{"database": a.DB}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}
	e.GET("/health", handlers.NewHealthHandler(checks).Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	go rateLimiter.Run(ctx)

	v1 := e.Group("/api/v1")
	handlers.RegisterRecommendationRoutes(v1, handlers.NewRecommendationHandler(a.Service, appLogger), handlers.RouteConfig{
		JWTSecret:   cfg.JWTSecret,
		Users:       a.Catalog,
		RateLimiter: rateLimiter,
	})

	cronManager := a.CronManager()
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to configure cron jobs: %v", err)
	}
	cronManager.Start()
	log.Println("✅ Cron jobs started")

	address := cfg.APIHost + ":" + cfg.APIPort
	go func() {
		log.Printf("🚀 Server starting on %s", address)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cronManager.Stop(shutdownCtx)
	log.Println("✅ Cron jobs stopped")

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
		return
	}
	log.Println("✅ Server gracefully stopped")
}
