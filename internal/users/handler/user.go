package handler

import (
	"net/http"

	"roomly/internal/users/service"
	"roomly/pkg/auth"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service  service.UserService
	sessions *auth.SessionStore
	log      *logger.Logger
}

// NewUserHandler builds the auth endpoints. sessions may be nil, in which case
// login issues only a bearer token.
func NewUserHandler(service service.UserService, sessions *auth.SessionStore, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		log:      log,
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/register", h.Register)
	router.POST("/api/v1/auth/login", h.Login)
	router.POST("/api/v1/auth/logout", auth.RequireAuth(h.Logout))
	router.GET("/api/v1/auth/me", auth.RequireAuth(h.Me))
	router.PATCH("/api/v1/auth/me", auth.RequireAuth(h.UpdateProfile))
	router.POST("/api/v1/auth/change-password", auth.RequireAuth(h.ChangePassword))
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reg model.Registration
	if err := httputil.DecodeJSON(r, &reg); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	profile, err := h.service.Register(r.Context(), &reg)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, profile); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var creds model.Credentials
	if err := httputil.DecodeJSON(r, &creds); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	session, identity, err := h.service.Login(r.Context(), &creds)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Set(w, r, identity); err != nil {
			h.log.Error("failed to set session cookie", "handler", "Login", "operation", "SetSession", "error", err)
		}
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.service.Logout(r.Context(), auth.FromContext(r.Context())); err != nil {
		h.writeError(w, "Logout", err)
		return
	}

	if h.sessions != nil {
		h.sessions.Clear(w)
	}

	if err := httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Logged out"}); err != nil {
		h.log.Error("failed to write response", "handler", "Logout", "operation", "WriteJSON", "error", err)
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	profile, err := h.service.Me(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, "Me", err)
		return
	}

	if err := httputil.WriteSuccess(w, profile); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update model.ProfileUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "UpdateProfile", err)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), auth.FromContext(r.Context()), &update)
	if err != nil {
		h.writeError(w, "UpdateProfile", err)
		return
	}

	if err := httputil.WriteSuccess(w, profile); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateProfile", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var change model.PasswordChange
	if err := httputil.DecodeJSON(r, &change); err != nil {
		h.writeError(w, "ChangePassword", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), auth.FromContext(r.Context()), &change); err != nil {
		h.writeError(w, "ChangePassword", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Password changed"}); err != nil {
		h.log.Error("failed to write response", "handler", "ChangePassword", "operation", "WriteJSON", "error", err)
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
