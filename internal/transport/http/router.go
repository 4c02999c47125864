package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/notify-api-nosql/internal/application/alert"
	"github.com/notify-api-nosql/internal/application/device"
	"github.com/notify-api-nosql/internal/application/notification"
	"github.com/notify-api-nosql/internal/config"
	"github.com/notify-api-nosql/internal/transport/http/handler"
	appmiddleware "github.com/notify-api-nosql/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 20 requests/second, burst of 40 — creation is chatty under sync but
	// should not be unbounded per client.
	createRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)

	var alerter notification.Alerter
	if deps.AlertSender != nil {
		alerter = alert.NewPusher(deps.DeviceRepo, deps.AlertSender)
	}
	notifSvc := notification.NewService(deps.NotificationRepo, alerter, cfg.MaxCreateAttempts)
	deviceSvc := device.NewService(deps.DeviceRepo, deps.AlertSender)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(notifSvc)
	deviceH := handler.NewDeviceHandler(deviceSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(createRL.Limit).Post("/notifications", notifH.Create)
			r.Get("/notifications", notifH.List)
			r.Get("/notifications/last", notifH.GetLast)
			r.Get("/notifications/{id}", notifH.Get)
			r.Post("/notifications/clear-badges", notifH.ClearBadges)

			r.Post("/devices", deviceH.Register)
			r.Get("/devices", deviceH.List)
			r.Put("/devices/{id}", deviceH.Update)
		})
	})

	return r
}
