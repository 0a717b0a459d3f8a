package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/discount"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/apiclient"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/instance"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

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
		Instance:    instance.GetID(),
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	state, err := newStateBackends(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap session state", err)
		os.Exit(1)
	}
	defer state.close(logg)

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	engine := discount.NewEngine(nil)

	carts, err := cart.NewStore(state.carts, cart.PricingFromConfig(cfg.Checkout), engine, logg.Component("cart"))
	if err != nil {
		logg.Error(ctx, "failed to create cart store", err)
		os.Exit(1)
	}

	sessions, err := session.NewService(state.auth, cfg.JWT, logg.Component("session"))
	if err != nil {
		logg.Error(ctx, "failed to create session service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(carts, engine, cfg.Checkout.MaxLineQuantity, checkoutMetrics, logg.Component("checkout"))
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	var gateway orders.Gateway
	if cfg.Checkout.UseExternalOrderEndpoint {
		client, err := apiclient.New(cfg.ExternalAPI, sessions, cfg.RouteGate.LoginPath, logg.Component("apiclient"))
		if err != nil {
			logg.Error(ctx, "failed to create storefront api client", err)
			os.Exit(1)
		}
		gateway = orders.NewAPIGateway(client)
	}

	ordersService, err := orders.NewService(
		carts,
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg.Component("outbox")),
		gateway,
		orders.PolicyFromConfig(cfg.Checkout),
		checkoutMetrics,
		logg.Component("orders"),
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	pages, err := controllers.Pages(cfg.RouteGate.PagesUpstream, logg)
	if err != nil {
		logg.Error(ctx, "failed to create pages proxy", err)
		os.Exit(1)
	}

	ready := map[string]controllers.Pinger{"database": dbClient}
	if state.redis != nil {
		ready["redis"] = state.redis
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"addr":  addr,
		"redis": state.redis != nil,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Checkout:    checkoutService,
			Orders:      ordersService,
			Sessions:    sessions,
			Idempotency: state.idempotency,
			RateLimiter: state.limiter,
			Pages:       pages,
			Gatherer:    prometheus.DefaultGatherer,
			Ready:       ready,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownWait)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
	logg.Info(context.WithoutCancel(ctx), "api server stopped")
}

// stateBackends holds the per-session stores. With redis disabled everything
// lives in process memory and idempotency and rate limiting are off.
type stateBackends struct {
	redis       *redis.Client
	carts       cart.Persistence
	auth        session.Store
	idempotency redis.IdempotencyStore
	limiter     redis.RateLimiter
}

func newStateBackends(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*stateBackends, error) {
	if !cfg.FeatureFlags.UseRedis {
		logg.Warn(ctx, "redis disabled, session state is kept in memory")
		return &stateBackends{
			carts: cart.NewMemoryPersistence(),
			auth:  session.NewMemoryStore(),
		}, nil
	}

	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, err
	}
	carts, err := cart.NewRedisPersistence(client, cfg.Redis.StateTTL)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	auth, err := session.NewRedisStore(client, cfg.Redis.StateTTL)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &stateBackends{
		redis:       client,
		carts:       carts,
		auth:        auth,
		idempotency: client,
		limiter:     client,
	}, nil
}

func (s *stateBackends) close(logg *logger.Logger) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		logg.Error(context.Background(), "error closing redis", err)
	}
}
