package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderdesk-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/orders"
	streamcontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/stream"
	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/orderdesk-backend/internal/checkout"
	"github.com/angelmondragon/orderdesk-backend/internal/notifications"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

// Deps carries the services mounted by NewRouter.
type Deps struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Catalog  catalog.Reader
	Tenants  tenants.Service
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Inbox    notifications.InboxService
	Hub      streamcontrollers.SessionHub
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var idempotencyStore redis.IdempotencyStore
	checkoutGuards := []func(http.Handler) http.Handler{}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		checkoutPolicy := middleware.NewRateLimitPolicy(
			"checkout",
			cfg.RateLimit.CheckoutWindow,
			cfg.RateLimit.CheckoutIPLimit,
			cfg.RateLimit.CheckoutPhoneLimit,
		)
		checkoutGuards = append(checkoutGuards, middleware.RateLimit(checkoutPolicy, deps.Redis, logg))
	}
	idempotent := middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{TTL: middleware.DefaultIdempotencyTTL}, logg)
	checkoutGuards = append(checkoutGuards, middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{
		TTL:      cfg.Checkout.IdempotencyTTL,
		Required: true,
	}, logg))

	pingers := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	if cfg.FeatureFlags.Metrics && deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/orders/{orderId}/tracking", ordercontrollers.Track(deps.Orders, logg))

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Get("/menu", controllers.PublicMenu(deps.Catalog, deps.Tenants, cfg.Checkout.ClosedMessage, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Get(deps.Cart, logg))
				r.Delete("/", cartcontrollers.Clear(deps.Cart, logg))
				r.Post("/items", cartcontrollers.AddItem(deps.Cart, logg))
				r.Patch("/items/{itemId}", cartcontrollers.UpdateItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(deps.Cart, logg))
			})

			r.With(checkoutGuards...).Post("/checkout", checkoutcontrollers.Submit(deps.Checkout, logg))
		})
	})

	r.Route("/api/v1/operator", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.TenantContext(logg))

		r.Get("/me", controllers.OperatorSession())

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderId}/receipt", ordercontrollers.Receipt(deps.Orders, deps.Tenants, logg))
			r.With(idempotent).Post("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Inbox, logg))
			r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(deps.Inbox, logg))
			r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Inbox, logg))
		})

		r.Route("/stream", func(r chi.Router) {
			r.Get("/", streamcontrollers.Events(deps.Hub, cfg.Notifications.StreamHeartbeat, logg))
			r.Post("/{sessionId}/ack", streamcontrollers.Ack(deps.Hub, logg))
			r.Post("/{sessionId}/interaction", streamcontrollers.Interaction(deps.Hub, logg))
		})
	})

	return r
}
