package http

import (
	"context"
	"net/http"

	"github.com/edu-notify-api/internal/config"
	"github.com/edu-notify-api/internal/domain"
	"github.com/edu-notify-api/internal/realtime"
	"github.com/edu-notify-api/internal/transport/http/handler"
	appmiddleware "github.com/edu-notify-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// housekeeping such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
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

	var (
		authMw     func(http.Handler) http.Handler
		identifier realtime.Identifier
	)
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		identifier = deps.JWTProvider
	} else {
		authMw = appmiddleware.Unavailable("authentication is not configured")
	}

	deviceRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.DeviceRateLimit), cfg.DeviceRateBurst)

	healthH := handler.NewHealthHandler()
	deviceH := handler.NewDeviceHandler(deps.DeviceSvc)
	notifH := handler.NewNotificationHandler(deps.NotificationSvc)
	adminH := handler.NewAdminHandler(deps.Notifier, deps.Hub)
	wsH := realtime.NewHandler(deps.Hub, identifier, cfg.AllowedOrigins, log.Named("ws"))

	r.Handle("/ws", wsH)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(deviceRL.Limit).Post("/devices/token", deviceH.Register)
			r.Delete("/devices/token", deviceH.Unregister)
			r.Delete("/devices/tokens", deviceH.ClearAll)
			r.Get("/devices/status", deviceH.Status)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllRead)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.Delete("/notifications", notifH.DeleteAll)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/admin/events", adminH.DispatchEvent)
				r.Get("/admin/realtime", adminH.Realtime)
			})
		})
	})

	return r
}
