package auth

import (
	"context"
	"net/http"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// Manager resolves the caller of a request from a bearer token or a session cookie.
type Manager struct {
	Tokens   *TokenIssuer
	Sessions *SessionStore
	log      *logger.Logger
}

func NewManager(tokens *TokenIssuer, sessions *SessionStore, log *logger.Logger) *Manager {
	return &Manager{Tokens: tokens, Sessions: sessions, log: log}
}

// Resolve returns the caller, nil for anonymous requests, or an error when a
// bearer token was presented but is not valid.
func (m *Manager) Resolve(r *http.Request) (*Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return nil, ErrInvalidToken
		}
		claims, err := m.Tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return &Identity{
			UserID:   claims.Subject,
			Username: claims.Username,
			Role:     claims.Role,
			TokenID:  claims.ID,
		}, nil
	}
	if m.Sessions != nil {
		if id, ok := m.Sessions.Get(r); ok {
			return id, nil
		}
	}
	return nil, nil
}

// Authenticate attaches the caller to the request context. It never rejects a
// request: a bad bearer token leaves the request anonymous and RequireAuth
// reports it, so routes that need no identity keep working.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Resolve(r)
		if err != nil {
			m.log.Debug("Rejected bearer token", "path", httputil.LogPath(r), "error", err)
			r = r.WithContext(context.WithValue(r.Context(), credentialErrorKey, err))
		}
		if id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// UserKey is a rate limit key extractor: the caller's id, or "" when anonymous.
func (m *Manager) UserKey(r *http.Request) string {
	if id := FromContext(r.Context()); id != nil {
		return id.UserID
	}
	id, err := m.Resolve(r)
	if err != nil || id == nil {
		return ""
	}
	return id.UserID
}

func RequireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if FromContext(r.Context()) == nil {
			if r.Context().Value(credentialErrorKey) != nil {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}
			_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication credentials were not provided"))
			return
		}
		next(w, r, ps)
	}
}

func RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !FromContext(r.Context()).IsAdmin() {
			_ = httputil.WriteError(w, apperrors.Forbidden("Administrator role required"))
			return
		}
		next(w, r, ps)
	})
}
