package http_test

import (
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/http"
)

func TestPostSendsJSONAndHeaders(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "597055555532", r.Header.Get("Tbk-Api-Key-Id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.EqualValues(t, 40000, in["amount"])
		w.Write([]byte(`{"token":"tok"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL).
		Header("Tbk-Api-Key-Id", "597055555532").
		Body(map[string]any{"amount": 40000}).
		Send()
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out struct{ Token string }
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "tok", out.Token)
}

func TestThrowReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.WriteHeader(gohttp.StatusUnprocessableEntity)
		w.Write([]byte(`{"error_message":"invalid token"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := http.Put(srv.URL).Send()
	require.NoError(t, err)

	var se *http.StatusError
	require.True(t, errors.As(resp.Throw(), &se))
	assert.Equal(t, gohttp.StatusUnprocessableEntity, se.StatusCode)
}

func TestTimeoutIsDetected(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := http.Get(srv.URL).Timeout(20 * time.Millisecond).Send()
	require.Error(t, err)
	assert.True(t, http.IsTimeout(err))
}

func TestRetryOnlyOnTransportErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(gohttp.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL).Retry(3, time.Millisecond).Send()
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
