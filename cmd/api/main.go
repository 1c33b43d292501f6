package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/crm-backend/api/routes"
	"github.com/angelmondragon/crm-backend/internal/app"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	"github.com/angelmondragon/crm-backend/pkg/migrate"
	"github.com/angelmondragon/crm-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	closers := []func() error{dbClient.Close}
	closeAll := func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error closing resources", errs)
		}
	}
	fail := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		closeAll()
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		fail("failed to run dev migrations", err)
	}

	// Redis is optional. Without it idempotency replay is off and locks stay
	// in-process.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			fail("failed to bootstrap redis", err)
		}
		closers = append(closers, redisClient.Close)
	}

	locker, err := app.NewLocker(cfg, redisClient)
	if err != nil {
		fail("failed to build locker", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	svcs, err := app.NewServices(app.Deps{
		DB:      dbClient,
		Locker:  locker,
		Metrics: m,
		Logger:  logg,
	})
	if err != nil {
		fail("failed to wire services", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("HOSTNAME")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, m, prometheus.DefaultGatherer, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			fail("api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
		cancel()
	}

	closeAll()
}
