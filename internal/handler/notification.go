package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/service"
)

// NotificationHandler serves the caller's inbox. Every route is scoped to the
// authenticated user; new notifications also arrive as notification:new on
// the realtime socket.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *slog.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/notifications?limit=&offset=
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.svc.List(r.Context(), callerID(r), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"notifications": inbox.Notifications, "unread": inbox.Unread})
}

// HTTP: GET /api/notifications/unread-count
func (h *NotificationHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"unread": n})
}

// HTTP: PATCH /api/notifications/{id}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// HTTP: PATCH /api/notifications/read-all
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkAllRead(r.Context(), callerID(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// HTTP: DELETE /api/notifications/{id}
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// HTTP: DELETE /api/notifications
func (h *NotificationHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAll(r.Context(), callerID(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
