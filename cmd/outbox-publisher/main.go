package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/instance"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const serviceName = "outbox-publisher"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load config: %v\n", serviceName, err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Instance:    instance.GetID(),
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "publisher.failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(context.WithoutCancel(ctx), "publisher.stopped")
}

// run drains the outbox into Redis pub/sub until ctx is canceled. Close
// failures are folded into the returned error.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(dbClient))

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(redisClient))

	publisher, err := outbox.NewRedisPublisher(redisClient)
	if err != nil {
		return err
	}
	repo := outbox.NewRepository(dbClient.DB())
	relay, err := outbox.NewRelay(outbox.RelayParams{
		Repository:   repo,
		Publisher:    publisher,
		Logger:       logg.Component("outbox-relay"),
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}

	startCtx := logg.WithFields(ctx, map[string]any{
		"batch_size":    cfg.Outbox.BatchSize,
		"poll_interval": cfg.Outbox.PollInterval.String(),
	})
	if pending, err := repo.CountPending(ctx, cfg.Outbox.MaxAttempts); err == nil {
		startCtx = logg.WithField(startCtx, "pending", pending)
	}
	logg.Info(startCtx, "publisher.started")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
