// Package authz guards the admin HTTP surface (macro CRUD, /stopall)
// behind a bearer token, adapted from the teacher's internal/auth
// middleware.
package authz

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
)

// EnvToken is the environment variable a deployment sets the admin token
// in, mirroring internal/auth's INTERNAL_API_TOKEN pattern.
const EnvToken = "TRTWITCHPLAYSBOT_ADMIN_TOKEN"

// Middleware guards admin endpoints with a single shared bearer token.
type Middleware struct {
	token string
}

// NewMiddleware builds a Middleware reading its token from EnvToken.
func NewMiddleware() *Middleware {
	return &Middleware{token: os.Getenv(EnvToken)}
}

// NewMiddlewareWithToken builds a Middleware over an explicit token,
// useful for tests and for callers that source the token from
// config.Settings instead of the environment.
func NewMiddlewareWithToken(token string) *Middleware {
	return &Middleware{token: token}
}

// RequireAuth wraps an http.Handler and requires a valid bearer token.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.isAuthenticated(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthFunc is RequireAuth for an http.HandlerFunc.
func (m *Middleware) RequireAuthFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.isAuthenticated(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *Middleware) isAuthenticated(r *http.Request) bool {
	if m.token == "" {
		return false
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	// Constant-time compare: this token guards macro CRUD and /stopall,
	// worth the extra care over a plain == even though the caller pool
	// is small.
	return subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) == 1
}

// IsEnabled reports whether a token is configured at all.
func (m *Middleware) IsEnabled() bool {
	return m.token != ""
}
