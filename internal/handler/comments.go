package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// CommentHandler handles comment endpoints.
type CommentHandler struct {
	service *service.CommentService
	logger  *logger.Logger
}

// NewCommentHandler creates a new comment handler.
func NewCommentHandler(svc *service.CommentService, log *logger.Logger) *CommentHandler {
	return &CommentHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/posts/:id/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	comments, err := h.service.ListThreaded(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list comments", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListCommentsResponse{Comments: comments})
}

// Add handles POST /api/v1/posts/:id/comments
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.AddCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateText(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a non-empty id means the comment was stored
	id, err := h.service.Add(r.Context(), session(r), postID, req.Content, req.ParentID)
	if err != nil && id == "" {
		writeServiceError(w, r, h.logger, "failed to add comment", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Edit handles PUT /api/v1/comments/:id
func (h *CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.EditCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateText(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Edit(r.Context(), session(r), commentID, req.Content); err != nil {
		writeServiceError(w, r, h.logger, "failed to edit comment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/comments/:id
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), session(r), commentID); err != nil {
		writeServiceError(w, r, h.logger, "failed to delete comment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/v1/comments/:id/like
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.service.ToggleLike(r.Context(), session(r), commentID)
	if err != nil && res.Action == "" {
		writeServiceError(w, r, h.logger, "failed to toggle like", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
