package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	service *service.NotificationService
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.service.List(r.Context(), session(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list notifications", err)
		return
	}
	if ns == nil {
		ns = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, &model.ListNotificationsResponse{
		Notifications: ns,
		Unread:        countUnread(ns),
	})
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(r.Context(), session(r), id); err != nil {
		writeServiceError(w, r, h.logger, "failed to mark notification read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
