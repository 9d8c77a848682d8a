package handler

import (
	"context"
	"net/http"

	"github.com/edu-notify-api/internal/application/dispatch"
	"github.com/edu-notify-api/internal/domain"
)

// Notifier delivers an event, waiting for the durable write only.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) (dispatch.Outcome, error)
}

// Presence reports live connection counts of this instance.
type Presence interface {
	OnlineUserCount() int
	ConnectionCount() int
}

// AdminHandler exposes operator endpoints for event dispatch and realtime state.
type AdminHandler struct {
	notifier Notifier
	presence Presence
}

func NewAdminHandler(notifier Notifier, presence Presence) *AdminHandler {
	return &AdminHandler{notifier: notifier, presence: presence}
}

func (h *AdminHandler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if !decodeJSON(w, r, &ev) {
		return
	}
	out, err := h.notifier.Notify(r.Context(), ev)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Envelope{Success: true, Msg: "event dispatched", Data: out})
}

func (h *AdminHandler) Realtime(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "", map[string]int{
		"onlineUsers": h.presence.OnlineUserCount(),
		"connections": h.presence.ConnectionCount(),
	})
}
