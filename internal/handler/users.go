package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// UserHandler handles profile and follow endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  log,
	}
}

// Me handles GET /api/v1/users/me, creating the profile on first use.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.EnsureProfile(r.Context(), session(r), "")
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load profile", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.EnsureProfile(r.Context(), session(r), req.DisplayName)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Get handles GET /api/v1/users/:id
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to get user", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Follow handles POST /api/v1/users/:id/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.service.ToggleFollow(r.Context(), session(r), targetID)
	if err != nil && !res.Changed {
		writeServiceError(w, r, h.logger, "failed to toggle follow", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
