package handler

import (
	"context"
	"net/http"
	"strings"

	"roomly/internal/bookings/events"
	"roomly/internal/bookings/service"
	"roomly/pkg/auth"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"roomly/pkg/middleware"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// tokenRoutePrefix precedes a cancellation token, which is a bearer credential.
const tokenRoutePrefix = "/api/v1/cancel/"

// RedactedPathPrefixes keeps cancellation tokens out of request logs.
func (h *BookingHandler) RedactedPathPrefixes() []string {
	return []string{tokenRoutePrefix}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", auth.RequireAuth(h.Create))
	router.GET("/api/v1/bookings", auth.RequireAuth(h.List))
	router.GET("/api/v1/bookings/my", auth.RequireAuth(h.ListMine))
	router.GET("/api/v1/bookings/id/:id", auth.RequireAuth(h.GetByID))
	router.DELETE("/api/v1/bookings/id/:id", auth.RequireAuth(h.Cancel))

	router.GET(tokenRoutePrefix+":token", h.GetByToken)
	router.DELETE(tokenRoutePrefix+":token", h.CancelByToken)

	router.GET("/api/v1/admin/bookings", auth.RequireAdmin(h.ListAll))
}

// eventContext tags events published while serving r with its request id.
func eventContext(r *http.Request) context.Context {
	return events.WithCorrelationID(r.Context(), middleware.RequestIDFromContext(r.Context()))
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	created, err := h.service.Create(eventContext(r), &req, auth.FromContext(r.Context()))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusCreated, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id, auth.FromContext(r.Context()))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	result, err := h.service.Cancel(eventContext(r), id, auth.FromContext(r.Context()))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) GetByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByToken(r.Context(), ps.ByName("token"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByToken", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByToken", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) CancelByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := h.service.CancelByToken(eventContext(r), ps.ByName("token"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CancelByToken", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error("failed to write JSON response", "handler", "CancelByToken", "operation", "WriteJSON", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "List", h.service.List)
}

func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, "ListAll", h.service.ListAll)
}

type listFunc func(ctx context.Context, filter *model.BookingFilter, actor *auth.Identity, limit int, offset int64) ([]*model.BookingView, int64, error)

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, name string, fn listFunc) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, total, err := fn(r.Context(), filterFromQuery(r), auth.FromContext(r.Context()), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListMine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	futureOnly := httputil.QueryBool(r, "future_only")

	bookings, total, err := h.service.ListMine(r.Context(), auth.FromContext(r.Context()), status, futureOnly, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListMine", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func filterFromQuery(r *http.Request) *model.BookingFilter {
	q := r.URL.Query()
	return &model.BookingFilter{
		RoomID:   strings.TrimSpace(q.Get("room_id")),
		UserID:   strings.TrimSpace(q.Get("user_id")),
		DateFrom: strings.TrimSpace(q.Get("date_from")),
		DateTo:   strings.TrimSpace(q.Get("date_to")),
		Status:   strings.TrimSpace(q.Get("status")),
	}
}
