package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/session"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs. Idempotency and
// RateLimiter are optional; leaving them nil disables those middlewares.
type Dependencies struct {
	Checkout    checkout.Service
	Orders      orders.Service
	Sessions    *session.Service
	Idempotency redis.IdempotencyStore
	RateLimiter redis.RateLimiter
	Pages       http.Handler
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	discountPolicy := middleware.NewRateLimitPolicy("discount", cfg.RateLimit.DiscountWindow, cfg.RateLimit.DiscountLimit)
	orderPolicy := middleware.NewRateLimitPolicy("orders", cfg.RateLimit.OrderWindow, cfg.RateLimit.OrderLimit)
	requireAuth := middleware.RequireAuth(cfg.RouteGate.LoginPath, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Get("/live", controllers.HealthLive(cfg))
			r.Get("/ready", controllers.HealthReady(cfg, deps.Ready, logg))
		})
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Session(cfg.App.IsProd(), logg),
				middleware.Authenticate(cfg.JWT, deps.Sessions, logg),
				middleware.Idempotency(deps.Idempotency, logg),
			)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", controllers.SessionGet(deps.Sessions, logg))
				r.Put("/", controllers.SessionSignIn(deps.Sessions, logg))
				r.Delete("/", controllers.SessionSignOut(deps.Sessions, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Checkout, logg))
				r.Delete("/", controllers.CartClear(deps.Checkout, logg))
				r.Post("/items", controllers.CartAddItem(deps.Checkout, logg))
				r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Checkout, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Checkout, logg))
				r.With(middleware.RateLimit(discountPolicy, deps.RateLimiter, logg)).
					Post("/discount", controllers.CartApplyDiscount(deps.Checkout, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Checkout, logg))
				r.Post("/next", controllers.CheckoutNext(deps.Checkout, logg))
				r.Post("/back", controllers.CheckoutBack(deps.Checkout, logg))
				r.Put("/shipping", controllers.CheckoutSubmitShipping(deps.Checkout, logg))
				r.Put("/payment", controllers.CheckoutSubmitPayment(deps.Checkout, logg))
				r.Get("/review", controllers.CheckoutReview(deps.Checkout, logg))
				r.With(requireAuth, middleware.RateLimit(orderPolicy, deps.RateLimiter, logg)).
					Post("/orders", controllers.OrdersPlace(deps.Orders, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", controllers.OrdersList(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrdersGet(deps.Orders, logg))
			})
		})
	})

	if deps.Pages != nil {
		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Session(cfg.App.IsProd(), logg),
				middleware.Authenticate(cfg.JWT, deps.Sessions, logg),
				middleware.RouteGate(cfg.RouteGate, logg),
			)
			r.Handle("/*", deps.Pages)
		})
	}

	return r
}
