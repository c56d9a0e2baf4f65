package handler

import (
	"net/http"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// DeviceHandler handles push device registration.
type DeviceHandler struct {
	service *service.DeviceService
	logger  *logger.Logger
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(svc *service.DeviceService, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: svc,
		logger:  log,
	}
}

// Register handles POST /api/v1/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Register(r.Context(), session(r), req.Token, req.Platform); err != nil {
		writeServiceError(w, r, h.logger, "failed to register device", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
