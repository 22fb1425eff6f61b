package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/ferremas/pkg/auth"
	"github.com/shashiranjanraj/ferremas/pkg/response"
)

type claimsKey struct{}

// AuthMiddleware requires a valid Bearer access token and stores its claims
// in the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateAccess(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims stores claims in ctx. Exposed for tests and non-HTTP entry points.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromCtx returns the authenticated claims, if any.
func ClaimsFromCtx(r *http.Request) (*auth.Claims, bool) {
	c, ok := r.Context().Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// UserIDFromCtx returns the authenticated user id.
func UserIDFromCtx(r *http.Request) (uint, bool) {
	c, ok := ClaimsFromCtx(r)
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

// RoleFromCtx returns the authenticated user's role.
func RoleFromCtx(r *http.Request) (string, bool) {
	c, ok := ClaimsFromCtx(r)
	if !ok {
		return "", false
	}
	return c.Role, true
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// WebSocket clients cannot set headers from the browser.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
