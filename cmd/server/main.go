package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/restockr/restockr-api/internal/config"
	"github.com/restockr/restockr-api/internal/database"
	"github.com/restockr/restockr-api/internal/handler"
	"github.com/restockr/restockr-api/internal/mail"
	"github.com/restockr/restockr-api/internal/middleware"
	"github.com/restockr/restockr-api/internal/monitor"
	"github.com/restockr/restockr-api/internal/queue"
	"github.com/restockr/restockr-api/internal/repository"
	"github.com/restockr/restockr-api/internal/router"
	"github.com/restockr/restockr-api/internal/service"
	"github.com/restockr/restockr-api/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := config.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reporter monitor.Reporter = monitor.Nop{}
	var requestScope echo.MiddlewareFunc
	if sr, err := monitor.NewSentryReporter(config.LoadSentryConfig(cfg.Env)); err != nil {
		logger.Warn("sentry disabled", "error", err)
	} else {
		reporter = sr
		requestScope = sr.RequestScope()
	}
	defer reporter.Flush(2 * time.Second)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis backs both revocation and rate limiting; without it the service
	// keeps running in degraded mode.
	rdb, err := config.NewRedisClient(ctx)
	var registry service.RevocationRegistry
	if err != nil {
		registry = service.NewDegradedRegistry(logger, err)
		reporter.CaptureMessage(ctx, "revocation registry degraded: "+err.Error())
	} else {
		defer rdb.Close()
		registry = service.NewRedisRegistry(rdb)
	}

	accounts := repository.NewAccountRepo(db)
	codec := utils.NewTokenCodec(cfg.JWTSecret)
	auth := service.NewAuthService(service.AuthConfig{
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		ActivationTTL: cfg.ActivationTTL,
		BcryptCost:    cfg.BcryptCost,
	}, accounts, codec, registry, logger, service.WithReporter(reporter))

	mailer := mail.NewMailtrapMailer(config.LoadMailConfig(), cfg.ActivationURL, logger)
	amqpCfg := config.LoadAMQPConfig()

	var wg sync.WaitGroup
	var publisher service.EventPublisher
	if amqpCfg.Enabled {
		publisher = service.NewAMQPPublisher(amqpCfg.URL, amqpCfg.RegisterQueue)
		consumer := &queue.Consumer{
			URL:      amqpCfg.URL,
			Queue:    amqpCfg.RegisterQueue,
			Prefetch: amqpCfg.Prefetch,
			Handle:   mailer.SendActivation,
			Logger:   logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("activation consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("amqp disabled; activation emails are sent inline")
		publisher = service.PublisherFunc(mailer.SendActivation)
	}

	accountSvc := service.NewAccountService(service.AccountConfig{
		ActivationTTL:   cfg.ActivationTTL,
		DefaultRegion:   cfg.DefaultRegion,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}, accounts, publisher, logger, reporter)

	e := newEcho(cfg, logger, requestScope)
	router.RegisterRoutes(e, handler.NewHealthHandler(db, auth))
	router.RegisterAuth(e,
		handler.NewAuthHandler(auth, accountSvc),
		handler.NewAccountHandler(accountSvc),
		auth,
		rateLimiter(rdb, logger),
	)
	router.RegisterAdmin(e, handler.NewAdminHandler(accountSvc), cfg.AdminUser, cfg.AdminPass)

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env, "revocation_degraded", auth.RevocationDegraded())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == database.DriverSQLite {
		return database.OpenSQLite(cfg.DBName)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func newEcho(cfg config.Config, logger *slog.Logger, requestScope echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if requestScope != nil {
		e.Use(requestScope)
	}
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("1M"))
	return e
}

func rateLimiter(rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
}
