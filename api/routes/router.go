package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ovrpay/ovrpay-backend/api/controllers"
	"github.com/ovrpay/ovrpay-backend/api/middleware"
	"github.com/ovrpay/ovrpay-backend/internal/disputes"
	"github.com/ovrpay/ovrpay-backend/internal/notifications"
	"github.com/ovrpay/ovrpay-backend/internal/payments"
	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/config"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
	"github.com/ovrpay/ovrpay-backend/pkg/redis"
)

const (
	publicLookupWindow = time.Minute
	publicLookupLimit  = 30
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	// Readiness pingers by dependency name.
	Pingers map[string]controllers.Pinger

	ViolationsService    violations.Service
	PaymentsService      payments.Service
	DisputesService      disputes.Service
	NotificationsService notifications.Service

	MetricsHandler http.Handler
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
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	lookupPolicy := middleware.NewRateLimitPolicy("public_lookup", publicLookupWindow, publicLookupLimit)
	r.Route("/api/v1/public", func(r chi.Router) {
		r.Use(middleware.RateLimit(lookupPolicy, deps.RedisClient, logg))
		r.Get("/violations/{ovrNumber}", controllers.LookupViolation(deps.ViolationsService, logg))
		r.Get("/receipts/{paymentNumber}", controllers.LookupReceipt(deps.PaymentsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.RedisClient, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.NotificationsService, logg))
			r.Post("/{id}/read", controllers.MarkNotificationRead(deps.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.NotificationsService, logg))
		})

		r.Route("/violations", func(r chi.Router) {
			r.Get("/{id}", controllers.GetViolation(deps.ViolationsService, logg))
			r.Get("/{id}/payments", controllers.ListViolationPayments(deps.PaymentsService, logg))
			r.Post("/{id}/disputes", controllers.SubmitDispute(deps.DisputesService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleEnforcer, enums.UserRoleAdmin))
				r.Post("/", controllers.CreateViolation(deps.ViolationsService, logg))
				r.Get("/", controllers.ListViolations(deps.ViolationsService, logg))
				r.Post("/{id}/cancel", controllers.CancelViolation(deps.ViolationsService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Post("/{id}/disputes/resolve", controllers.ResolveDispute(deps.DisputesService, logg))
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.InitiatePayment(deps.PaymentsService, logg))
			r.Get("/{id}", controllers.GetPayment(deps.PaymentsService, logg))
			r.Post("/{id}/cancel", controllers.CancelPayment(deps.PaymentsService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Post("/{id}/refund", controllers.RefundPayment(deps.PaymentsService, logg))
			})
		})
	})

	return r
}
