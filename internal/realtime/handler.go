package realtime

import (
	"net/http"
	"strings"

	"github.com/edu-notify-api/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Identifier resolves a bearer token to an identity.
type Identifier interface {
	Identify(token string) (domain.Identity, error)
}

// Handler upgrades HTTP requests to websocket connections registered with a Hub.
// A missing or invalid token yields an anonymous connection rather than a rejection.
type Handler struct {
	hub      *Hub
	auth     Identifier
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler builds a Handler. auth may be nil, in which case every connection is anonymous.
func NewHandler(hub *Hub, auth Identifier, allowedOrigins []string, log *zap.Logger) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// bearerToken reads the token from the Authorization header, falling back to the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) identify(r *http.Request) *domain.Identity {
	token := bearerToken(r)
	if token == "" || h.auth == nil {
		return nil
	}
	id, err := h.auth.Identify(token)
	if err != nil {
		h.log.Debug("websocket auth failed, connecting anonymously", zap.Error(err))
		return nil
	}
	return &id
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := h.identify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	log := h.log.With(zap.String("conn", connID))
	if identity != nil {
		log = log.With(zap.String("user_id", identity.UserID))
	}
	c := newClient(connID, identity, h.hub, conn, log)
	if err := h.hub.Register(c); err != nil {
		log.Warn("websocket register refused", zap.Error(err))
		conn.Close()
		return
	}

	hello := map[string]any{"authenticated": identity != nil, "connectionId": connID}
	if identity != nil {
		hello["userId"] = identity.UserID
	}
	c.reply(EventConnected, hello)
	log.Debug("websocket connected", zap.Bool("authenticated", identity != nil))

	go c.writePump()
	c.readPump()
	log.Debug("websocket disconnected")
}
