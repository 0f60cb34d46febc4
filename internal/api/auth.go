package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// parseBearer extracts the token from an "Authorization: Bearer <token>"
// header.
func parseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	return token, token != ""
}

// requireReviewToken guards the safety-event review routes. The routes stay
// closed (404) until both an event store and a review token are configured.
func (s *Server) requireReviewToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.events == nil || s.reviewToken == "" {
			writeError(w, http.StatusNotFound, "Safety event review is not configured.", nil)
			return
		}
		token, ok := parseBearer(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.reviewToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rafiq-review"`)
			writeError(w, http.StatusUnauthorized, "A valid review token is required.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
