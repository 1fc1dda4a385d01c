// Command server runs the pickup-order HTTP API.
//
// @title        Pickup Orders API
// @version      1.0
// @description  Order placement, order lifecycle and order chat for food pickup.
// @BasePath     /api/v1
// @schemes      http https
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-pickup-backend/internal/config"
	httpapi "github.com/tbourn/go-pickup-backend/internal/http"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
	"github.com/tbourn/go-pickup-backend/internal/services"
	"github.com/tbourn/go-pickup-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	// Missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version, "dev")
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return errors.Wrap(err, "setup tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return errors.Wrap(err, "open datastore")
	}
	if err := repo.AutoMigrate(db); err != nil {
		return errors.Wrap(err, "migrate schema")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	queue := notify.NewQueue(cfg.Effects.Workers, cfg.Effects.Buffer, cfg.Effects.TaskTimeout).
		WithObserver(observability.EffectOutcome)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, queue, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	jobs := []job{
		rateLimitCleanup(services.NewRateLimiter(db, services.DefaultLimits()), cfg.Jobs.RateLimitCleanupInterval, cfg.Jobs.RateLimitRetention),
		idempotencyPurge(services.NewIdempotencyCache(db, cfg.IdempotencyTTL, cfg.IdempotencyProcessingTTL), cfg.Jobs.IdempotencyPurgeInterval),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Effects run on a context that outlives the request path so queued
	// notifications still drain after shutdown starts.
	g.Go(func() error { return queue.Run(context.WithoutCancel(gctx)) })

	for _, j := range jobs {
		g.Go(func() error {
			j.loop(gctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("gin_mode", gin.Mode()).
			Str("db_driver", cfg.DBDriver).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		// No more requests can enqueue effects once the server is down.
		queue.Close()
		return err
	})

	return g.Wait()
}
