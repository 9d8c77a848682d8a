package http

import (
	"github.com/edu-notify-api/internal/application/device"
	"github.com/edu-notify-api/internal/application/notification"
	jwtinfra "github.com/edu-notify-api/internal/infrastructure/jwt"
	"github.com/edu-notify-api/internal/realtime"
	"github.com/edu-notify-api/internal/transport/http/handler"
)

// Deps holds the application services and infrastructure the router serves.
type Deps struct {
	DeviceSvc       device.Service
	NotificationSvc notification.Service
	Notifier        handler.Notifier
	Hub             *realtime.Hub
	// JWTProvider is nil when no key is configured: authenticated routes then
	// reject every request and websocket connections are anonymous.
	JWTProvider *jwtinfra.Provider
}
