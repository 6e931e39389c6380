package handler

import (
	"net/http"

	"roomly/internal/schedule/service"
	"roomly/pkg/auth"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type ScheduleHandler struct {
	service service.ScheduleService
	log     *logger.Logger
}

func NewScheduleHandler(service service.ScheduleService, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		log:     log,
	}
}

func (h *ScheduleHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/schedule", auth.RequireAuth(h.GetSchedule))
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view, err := h.service.GetSchedule(r.Context(), r.URL.Query().Get("date"), auth.FromContext(r.Context()))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetSchedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSchedule", "operation", "WriteSuccess", "error", err)
	}
}
