package reqid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/ferremas/pkg/reqid"
)

func serve(incoming string) (header, seen string) {
	h := reqid.Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(reqid.Header, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header().Get(reqid.Header), seen
}

func TestMiddlewareReusesUpstreamID(t *testing.T) {
	header, seen := serve("lb-7f3a.01")
	assert.Equal(t, "lb-7f3a.01", header)
	assert.Equal(t, "lb-7f3a.01", seen)
}

func TestMiddlewareReplacesMissingOrUnsafeID(t *testing.T) {
	for _, in := range []string{"", "bad id\nlevel=ERROR", strings.Repeat("a", 65)} {
		header, seen := serve(in)
		assert.Len(t, header, 32, "%q", in)
		assert.Equal(t, header, seen)
		assert.NotEqual(t, in, header)
	}
}
