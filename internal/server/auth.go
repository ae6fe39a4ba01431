package server

import (
	"net/http"
	"time"
)

const (
	tokenCookieName = "sk_token"
	tokenHeaderName = "X-Splitkit-Token"
)

// authorized checks for the admin token in a header, query param or cookie.
// A valid query-param token also sets the session cookie so later requests
// from the same browser pass without it.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(tokenHeaderName) == s.token {
		return true
	}

	if queryToken := r.URL.Query().Get("token"); queryToken != "" {
		if queryToken != s.token {
			return false
		}
		http.SetCookie(w, &http.Cookie{
			Name:     tokenCookieName,
			Value:    s.token,
			Path:     "/",
			HttpOnly: true,
			MaxAge:   int(24 * time.Hour / time.Second), // 24 hours
			SameSite: http.SameSiteLaxMode,
		})
		return true
	}

	cookie, err := r.Cookie(tokenCookieName)
	return err == nil && cookie.Value == s.token
}

// requireAuth writes a 401 and returns false when the request lacks a valid
// admin token.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if s.authorized(w, r) {
		return true
	}
	writeError(w, http.StatusUnauthorized, "Unauthorized")
	return false
}
