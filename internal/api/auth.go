// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/koski/dealsearch/internal/log"
)

// HeaderAPIToken carries the admin token for operator endpoints.
const HeaderAPIToken = "X-API-Token"

// extractToken reads the admin token from the X-API-Token header or a
// Bearer Authorization header.
func extractToken(r *http.Request) string {
	if tok := r.Header.Get(HeaderAPIToken); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authorizeToken compares tokens in constant time to prevent timing
// attacks. Empty tokens never authorize.
func authorizeToken(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireToken enforces the admin token on operator endpoints. When no
// token is configured the endpoint is open.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.config().APIToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		logger := log.WithComponentFromContext(r.Context(), "auth")

		reqToken := extractToken(r)
		if reqToken == "" {
			logger.Warn().Str("event", "auth.missing_header").Msg("api token header missing")
			writeUnauthorized(w)
			return
		}

		if !authorizeToken(reqToken, token) {
			logger.Warn().Str("event", "auth.invalid_token").Msg("invalid api token")
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
