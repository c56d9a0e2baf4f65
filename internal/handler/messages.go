package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msgs, hasMore, err := h.service.List(r.Context(), session(r), convID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list messages", err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		Messages: msgs,
		HasMore:  hasMore,
	})
}

// Send handles POST /api/v1/conversations/:id/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a non-empty id means the message landed even if the summary did not
	id, err := h.service.Send(r.Context(), session(r), convID, req.ReceiverID, req.Text)
	if err != nil && id == "" {
		writeServiceError(w, r, h.logger, "failed to send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{ID: id})
}

// MarkRead handles POST /api/v1/conversations/:id/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.MarkConversationAsRead(r.Context(), session(r), convID); err != nil {
		writeServiceError(w, r, h.logger, "failed to mark conversation read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
