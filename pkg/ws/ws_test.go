package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/ws"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitClients(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishHonoursTopics(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx) //nolint:errcheck

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Upgrade(w, r, hub, ws.TopicsFromQuery(r))
	}))
	defer srv.Close()

	all := dial(t, srv, "")
	defer all.Close()
	wh2 := dial(t, srv, "?topics=warehouse:2")
	defer wh2.Close()
	waitClients(t, hub, 2)

	hub.Publish("warehouse:1", map[string]int{"product_id": 5, "quantity": 7})
	hub.Publish("warehouse:2", map[string]int{"product_id": 6, "quantity": 1})

	var got ws.Envelope
	all.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err := all.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "warehouse:1", got.Topic)

	wh2.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err = wh2.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "warehouse:2", got.Topic)
}

func TestTopicsFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?topics=warehouse:1,%20orders,", nil)
	assert.Equal(t, []string{"warehouse:1", "orders"}, ws.TopicsFromQuery(r))
	assert.Nil(t, ws.TopicsFromQuery(httptest.NewRequest(http.MethodGet, "/ws", nil)))
}
