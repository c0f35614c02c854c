package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Vantorrr/yauberu-backend/api/controllers"
	"github.com/Vantorrr/yauberu-backend/api/middleware"
	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/orders"
	"github.com/Vantorrr/yauberu-backend/internal/payments"
	"github.com/Vantorrr/yauberu-backend/internal/subscriptions"
	"github.com/Vantorrr/yauberu-backend/pkg/config"
	"github.com/Vantorrr/yauberu-backend/pkg/db"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	MetricsHandler http.Handler

	Generator     generator.Service
	Orders        orders.Service
	Ledger        ledger.Service
	Subscriptions subscriptions.Service
	Payments      payments.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.HealthLive(cfg))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Post("/payments/webhook", controllers.PaymentWebhook(deps.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Post("/payments", controllers.CreatePayment(deps.Payments, logg))
			r.Get("/balance", controllers.Balance(deps.Ledger, logg))
			r.Get("/subscriptions", controllers.ListSubscriptions(deps.Subscriptions, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			})
		})

		r.Route("/courier", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleCourier), logg))

			r.Get("/complexes", controllers.CourierComplexes(deps.Orders, logg))
			r.Get("/complexes/{complexId}/buildings", controllers.CourierBuildings(deps.Orders, logg))
			r.Get("/complexes/{complexId}/orders", controllers.CourierOrders(deps.Orders, logg))
			r.Post("/orders/{orderId}/take", controllers.TakeOrder(deps.Orders, logg))
			r.Post("/orders/{orderId}/complete", controllers.CompleteOrder(deps.Orders, logg))
			r.Post("/orders/{orderId}/undo", controllers.UndoOrder(deps.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Post("/scheduler/run", controllers.SchedulerRun(deps.Generator, logg))
			r.Post("/scheduler/backfill", controllers.SchedulerBackfill(deps.Generator, logg))
			r.Post("/admin/orders/{orderId}/undo/resolve", controllers.ResolveUndoOrder(deps.Orders, logg))
		})
	})

	return r
}
