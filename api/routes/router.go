package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Deps are the services the HTTP surface dispatches to.
type Deps struct {
	DB             controllers.Pinger
	Redis          redisStore
	Cart           cartsvc.Service
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Inventory      inventory.Service
	PaymentWebhook webhookcontrollers.PaymentWebhookService
	WebhookGuard   webhookGuard
	Metrics        http.Handler
}

// NewRouter builds the chi router for the storefront API.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS(cfg.App.CORSOrigins))

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["database"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	var store redisStore
	if deps.Redis != nil {
		store = deps.Redis
	}

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.Window, cfg.RateLimit.WriteLimit)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit)

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, readiness, logg))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Post("/api/v1/webhooks/payments", webhookcontrollers.PaymentWebhook(deps.PaymentWebhook, cfg.Webhooks.PaymentSecret, deps.WebhookGuard, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireCaller(logg))
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(writePolicy, store, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
				r.With(middleware.RequireUser(logg)).Post("/merge", cartcontrollers.CartMerge(deps.Cart, logg))
			})
		})

		r.With(
			middleware.RequireCaller(logg),
			middleware.RateLimit(checkoutPolicy, store, logg),
		).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.With(middleware.RequireUser(logg)).Get("/orders", ordercontrollers.List(deps.Orders, logg))
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Use(middleware.RequireCaller(logg))
			r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
			r.With(middleware.RateLimit(writePolicy, store, logg)).Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
		r.Use(middleware.Idempotency(store, logg))
		r.Use(middleware.RateLimit(writePolicy, store, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/status", controllers.AdminOrderStatus(deps.Orders, logg))
			r.Post("/cancel", controllers.AdminOrderCancel(deps.Orders, logg))
		})
		r.Post("/inventory/{productId}/adjust", controllers.AdminAdjustStock(deps.Inventory, logg))
	})

	return r
}
