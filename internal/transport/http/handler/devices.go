package handler

import (
	"net/http"

	"github.com/edu-notify-api/internal/application/device"
	"github.com/edu-notify-api/internal/domain"
)

// DeviceHandler handles push token registration for the calling user.
type DeviceHandler struct {
	svc device.Service
}

func NewDeviceHandler(svc device.Service) *DeviceHandler { return &DeviceHandler{svc: svc} }

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req domain.RegisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := h.svc.RegisterToken(r.Context(), id, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "device token registered", status)
}

func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req domain.UnregisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UnregisterToken(r.Context(), id.UserID, req); err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "device token removed", nil)
}

func (h *DeviceHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.ClearAllTokens(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "all device tokens removed", map[string]int{"removedCount": len(removed)})
}

func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	status, err := h.svc.GetStatus(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "", status)
}
