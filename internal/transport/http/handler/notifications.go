package handler

import (
	"net/http"
	"strconv"

	"github.com/edu-notify-api/internal/application/notification"
	"github.com/edu-notify-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// NotificationHandler handles the calling user's notification inbox.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := domain.NotificationQuery{
		Page:       atoiOr(q.Get("page"), 1),
		Limit:      atoiOr(q.Get("limit"), notification.DefaultLimit),
		UnreadOnly: q.Get("unreadOnly") == "true",
	}
	page, err := h.svc.List(r.Context(), id.UserID, query)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "", page)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "", map[string]int{"count": n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "notification marked as read", n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkAllRead(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "all notifications marked as read", map[string]int{"modifiedCount": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Delete(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "notification deleted", nil)
}

func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.svc.DeleteAll(r.Context(), id.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeOK(w, "all notifications deleted", map[string]int{"deletedCount": n})
}

// atoiOr parses s, returning fallback when s is empty or malformed.
func atoiOr(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}
