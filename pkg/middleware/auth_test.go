package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/auth"
	"github.com/shashiranjanraj/ferremas/pkg/middleware"
	"github.com/shashiranjanraj/ferremas/pkg/rbac"
)

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.UserIDFromCtx(r)
		assert.True(t, ok)
		assert.Equal(t, uint(9), id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.AuthMiddleware(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsRefreshToken(t *testing.T) {
	pair, err := auth.IssuePair(auth.Subject{UserID: 9, Role: "customer"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Refresh)
	rec := httptest.NewRecorder()
	middleware.AuthMiddleware(okHandler(t)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareStoresClaims(t *testing.T) {
	pair, err := auth.IssuePair(auth.Subject{UserID: 9, Role: "customer"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := httptest.NewRecorder()
	middleware.AuthMiddleware(okHandler(t)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHasRole(t *testing.T) {
	pair, err := auth.IssuePair(auth.Subject{UserID: 9, Role: "customer"})
	require.NoError(t, err)

	h := middleware.AuthMiddleware(rbac.HasRole("admin")(okHandler(t)))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h = middleware.AuthMiddleware(rbac.HasRole("admin", "customer")(okHandler(t)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := middleware.RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.9.8.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
