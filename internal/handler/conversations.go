package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId: "+err.Error())
		return
	}

	id, err := h.service.GetOrCreate(r.Context(), session(r), req.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to create conversation", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateConversationResponse{ID: id})
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.ListForUser(r.Context(), session(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list conversations", err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.service.Get(r.Context(), session(r), convID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
