package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// PostHandler handles post, reaction and bookmark endpoints.
type PostHandler struct {
	posts     *service.PostService
	reactions *service.ReactionService
	logger    *logger.Logger
}

// NewPostHandler creates a new post handler.
func NewPostHandler(posts *service.PostService, reactions *service.ReactionService, log *logger.Logger) *PostHandler {
	return &PostHandler{
		posts:     posts,
		reactions: reactions,
		logger:    log,
	}
}

// Create handles POST /api/v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateText(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.posts.Create(r.Context(), session(r), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to create post", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// List handles GET /api/v1/posts?category=&limit=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context(), r.URL.Query().Get("category"), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list posts", err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}

	writeJSON(w, http.StatusOK, &model.ListPostsResponse{Posts: posts})
}

// Get handles GET /api/v1/posts/:id
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	post, err := h.posts.Get(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to get post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// Update handles PUT /api/v1/posts/:id
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Content != nil {
		if err := middleware.ValidateText(*req.Content); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.posts.Update(r.Context(), session(r), postID, &req); err != nil {
		writeServiceError(w, r, h.logger, "failed to update post", err)
		return
	}

	post, err := h.posts.Get(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to get post", err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /api/v1/posts/:id
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), session(r), postID); err != nil {
		writeServiceError(w, r, h.logger, "failed to delete post", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// React handles POST /api/v1/posts/:id/reactions
func (h *PostHandler) React(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.ToggleReactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// an action means the toggle landed even if the follow-up work failed
	res, err := h.reactions.Toggle(r.Context(), session(r), postID, req.Emoji)
	if err != nil && res.Action == "" {
		writeServiceError(w, r, h.logger, "failed to toggle reaction", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Bookmark handles POST /api/v1/posts/:id/bookmark
func (h *PostHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.posts.ToggleBookmark(r.Context(), session(r), postID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to toggle bookmark", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// View handles POST /api/v1/posts/:id/views
func (h *PostHandler) View(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.posts.RecordView(r.Context(), postID); err != nil {
		writeServiceError(w, r, h.logger, "failed to record view", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
