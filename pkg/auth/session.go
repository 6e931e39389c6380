package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const SessionCookieName = "roomly_session"

// SessionStore keeps the browser session in a signed (and optionally encrypted) cookie.
type SessionStore struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
	now    func() time.Time
}

type sessionValue struct {
	UserID   string `json:"uid"`
	Username string `json:"usr"`
	Role     string `json:"role"`
}

func NewSessionStore(hashKey, blockKey []byte, maxAge time.Duration) *SessionStore {
	if len(blockKey) == 0 {
		blockKey = nil
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &SessionStore{sc: sc, maxAge: maxAge, now: time.Now}
}

func (s *SessionStore) Set(w http.ResponseWriter, r *http.Request, id *Identity) error {
	encoded, err := s.sc.Encode(SessionCookieName, sessionValue{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
	})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(s.maxAge.Seconds()),
		Expires:  s.now().Add(s.maxAge),
	})
	return nil
}

func (s *SessionStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Get decodes the session cookie. Missing, tampered or expired cookies yield false.
func (s *SessionStore) Get(r *http.Request) (*Identity, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, false
	}
	var val sessionValue
	if err := s.sc.Decode(SessionCookieName, c.Value, &val); err != nil {
		return nil, false
	}
	if val.UserID == "" {
		return nil, false
	}
	return &Identity{UserID: val.UserID, Username: val.Username, Role: val.Role}, true
}
