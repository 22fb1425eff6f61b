package sse_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/sse"
)

func TestStreamFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := sse.New(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.NoError(t, s.Event("status", map[string]any{"order_id": 7, "status": "paid"}))
	require.NoError(t, s.Comment("ping\nagain"))
	require.NoError(t, s.Event("status", map[string]any{"order_id": 7, "status": "preparing"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)
	assert.Equal(t,
		"id: 1\nevent: status\ndata: {\"order_id\":7,\"status\":\"paid\"}\n\n"+
			": ping again\n\n"+
			"id: 2\nevent: status\ndata: {\"order_id\":7,\"status\":\"preparing\"}\n\n",
		rec.Body.String())
}

func TestClosedStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	s, err := sse.New(httptest.NewRecorder(), req)
	require.NoError(t, err)

	cancel()
	<-s.Done()
	assert.ErrorIs(t, s.Event("status", "x"), sse.ErrClosed)
	assert.ErrorIs(t, s.Comment("ping"), sse.ErrClosed)
}

type plainWriter struct{ h http.Header }

func (w *plainWriter) Header() http.Header { return w.h }
func (w *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *plainWriter) WriteHeader(int) {}

func TestNeedsFlusher(t *testing.T) {
	_, err := sse.New(&plainWriter{h: http.Header{}}, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}
