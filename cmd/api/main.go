package main

// @title CRM Leads API
// @version 1.0
// @description Lead assignment and role-based access for the CRM.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/config"
	apierrors "github.com/jordanlanch/crmleads/pkg/api/errors"
	"github.com/jordanlanch/crmleads/pkg/api/handlers"
	"github.com/jordanlanch/crmleads/pkg/auth"
	"github.com/jordanlanch/crmleads/pkg/cache"
	"github.com/jordanlanch/crmleads/pkg/database"
	"github.com/jordanlanch/crmleads/pkg/email"
	"github.com/jordanlanch/crmleads/pkg/jobs"
	"github.com/jordanlanch/crmleads/pkg/leadassignment"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/metrics"
	custommiddleware "github.com/jordanlanch/crmleads/pkg/middleware"
	"github.com/jordanlanch/crmleads/pkg/verification"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crmleads: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	apierrors.SetLogger(log)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	if cfg.IsProduction() && cfg.JWTSecret == "change-this-in-production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}

	location, err := time.LoadLocation(cfg.AssignmentTimezone)
	if err != nil {
		return fmt.Errorf("invalid ASSIGNMENT_TIMEZONE %q: %w", cfg.AssignmentTimezone, err)
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sslCfg *database.SSLConfig
	if cfg.DBSSLMode != "" {
		sslCfg = &database.SSLConfig{Mode: cfg.DBSSLMode, RootCertPath: cfg.DBSSLRootCert}
	}
	poolCfg := database.DefaultPoolConfig()
	poolCfg.MaxOpenConns = cfg.DBMaxOpenConns
	poolCfg.MaxIdleConns = cfg.DBMaxIdleConns

	db, err := database.NewClientWithPoolAndSSL(ctx, cfg.DBDriver, cfg.DatabaseURL, poolCfg, sslCfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	store := database.NewStore(db)

	clk := clockwork.NewRealClock()

	// Without Redis, codes and revoked tokens live in process memory and
	// the purge job keeps the map bounded.
	var kv cache.Store
	var purger jobs.Purger
	health := map[string]handlers.Pinger{"database": db}
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		kv = cache.NewRedisStore(redisClient, "crmleads:")
		health["cache"] = redisClient
	} else {
		memory := cache.NewMemoryStore(clk)
		kv = memory
		purger = memory
		log.Warn("REDIS_URL not set, using in-memory cache")
	}

	m := metrics.New(nil)

	assignments := leadassignment.NewService(store, leadassignment.Options{
		Clock:           clk,
		Location:        location,
		DefaultDailyCap: cfg.AssignmentDefaultDailyCap,
		MaxRetries:      cfg.AssignmentMaxRetries,
		Logger:          log.With("component", "assignment"),
		Recorder:        m,
	})
	rules := leadassignment.NewRuleService(store, clk, log.With("component", "rules"))
	mailer := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey, log)
	codes := verification.NewService(kv, mailer, time.Duration(cfg.TwoFactorTTLMinutes)*time.Minute, log)

	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(ctx, cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(ctx, 5, 2)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				log.Error("request failed", append(args, "error", v.Error.Error())...)
				return nil
			}
			log.Debug("request", args...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	e.GET("/health", handlers.NewHealthHandler(health).Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handlers.RegisterRoutes(e, handlers.Deps{
		Assignments: assignments,
		Rules:       rules,
		Users:       store,
		Codes:       codes,
		Blacklist:   auth.NewTokenBlacklist(kv),
		Auth: handlers.AuthConfig{
			JWTSecret:          cfg.JWTSecret,
			JWTExpirationHours: cfg.JWTExpirationHours,
		},
		Recorder:      m,
		Logger:        log,
		AuthRateLimit: authRateLimiter.RateLimitMiddleware(),
	})

	cronManager := jobs.NewCronManager(jobs.Deps{
		Purger:   purger,
		Pool:     db,
		History:  assignments,
		Recorder: m,
		Clock:    clk,
		Location: location,
		Logger:   log,
	})
	if err := cronManager.SetupJobs(); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	cronManager.Start()

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("API starting",
		"address", address,
		"driver", cfg.DBDriver,
		"timezone", location.String(),
		"rate_limit_rpm", cfg.RateLimitRequestsPerMinute,
		"jwt_expiration_hours", cfg.JWTExpirationHours)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	cronManager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server gracefully stopped")
	return nil
}
