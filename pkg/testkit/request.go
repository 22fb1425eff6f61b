package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Response wraps a recorded handler response.
type Response struct {
	*httptest.ResponseRecorder
}

// Envelope mirrors the JSON envelope written by pkg/response.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

// Request describes one call made with Do.
type Request struct {
	Method string
	Path   string
	Body   interface{}
	Token  string
	Header map[string]string
}

// Do serves req through h and records the response. Body values other than
// string and []byte are encoded as JSON.
func Do(t *testing.T, h http.Handler, req Request) *Response {
	t.Helper()

	var body io.Reader
	switch v := req.Body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(v)
	case []byte:
		body = bytes.NewReader(v)
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	r := httptest.NewRequest(req.Method, req.Path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		r.Header.Set("Authorization", "Bearer "+req.Token)
	}
	for k, v := range req.Header {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return &Response{rec}
}

// Envelope decodes the standard response envelope.
func (r *Response) Envelope(t *testing.T) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &env), "body: %s", r.Body.String())
	return env
}

// Data decodes envelope.data into dest.
func (r *Response) Data(t *testing.T, dest interface{}) {
	t.Helper()
	env := r.Envelope(t)
	require.NoError(t, json.Unmarshal(env.Data, dest), "data: %s", string(env.Data))
}
