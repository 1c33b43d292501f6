package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/crm-backend/internal/app"
	"github.com/angelmondragon/crm-backend/internal/cli"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(bootstrap)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}

// bootstrap connects to the configured database. Logs go to stderr so that
// --format json output stays clean.
func bootstrap(ctx context.Context, opts *cli.RootOptions) (*cli.Env, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.App.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logg := logger.New(logger.Options{
		ServiceName: "crmctl",
		Level:       logger.ParseLevel(level),
		Format:      "console",
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{dbClient.Close}
	closeAll := func() error {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		return errs
	}

	// Repairs take the same deal and contact keys as the API, so they share
	// its Redis locks when Redis is configured.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, multierr.Append(err, closeAll())
		}
		closers = append(closers, redisClient.Close)
	}
	locker, err := app.NewLocker(cfg, redisClient)
	if err != nil {
		return nil, nil, multierr.Append(err, closeAll())
	}

	svcs, err := app.NewServices(app.Deps{DB: dbClient, Locker: locker, Logger: logg})
	if err != nil {
		return nil, nil, multierr.Append(err, closeAll())
	}
	return &cli.Env{Config: cfg, DB: dbClient, Services: svcs, Logger: logg}, closeAll, nil
}
