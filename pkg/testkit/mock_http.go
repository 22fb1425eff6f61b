// Package testkit holds test helpers: a scripted http.RoundTripper for the
// outbound client and a JSON request helper for handler tests.
package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
)

// MockTransport answers outgoing requests from registered stubs.
//
//	mt := testkit.NewMockTransport()
//	mt.On("POST", "https://webpay.test/transactions").ReplyJSON(200, map[string]any{"token": "t"})
//	testkit.Install(t, mt)
type MockTransport struct {
	mu    sync.Mutex
	stubs []*Stub
	calls []*http.Request
}

// Stub is one scripted reply, matched by method and URL prefix.
type Stub struct {
	method string
	prefix string
	status int
	body   []byte
	err    error
	hang   bool
	times  int
}

func NewMockTransport() *MockTransport { return &MockTransport{} }

// On adds a stub. An empty method matches any method.
func (mt *MockTransport) On(method, urlPrefix string) *Stub {
	s := &Stub{method: strings.ToUpper(method), prefix: urlPrefix, status: http.StatusOK}
	mt.mu.Lock()
	mt.stubs = append(mt.stubs, s)
	mt.mu.Unlock()
	return s
}

func (s *Stub) Reply(status int, body string) *Stub {
	s.status, s.body = status, []byte(body)
	return s
}

func (s *Stub) ReplyJSON(status int, v interface{}) *Stub {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.status, s.body = status, b
	return s
}

// Fail makes the round trip return err, as a refused connection would.
func (s *Stub) Fail(err error) *Stub {
	s.err = err
	return s
}

// Hang blocks until the request context ends, simulating a timeout.
func (s *Stub) Hang() *Stub {
	s.hang = true
	return s
}

// Times reports how often the stub matched.
func (s *Stub) Times() int { return s.times }

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	mt.calls = append(mt.calls, req)
	var match *Stub
	for _, s := range mt.stubs {
		if (s.method == "" || s.method == req.Method) && strings.HasPrefix(req.URL.String(), s.prefix) {
			match = s
			s.times++
			break
		}
	}
	mt.mu.Unlock()

	if match == nil {
		return nil, fmt.Errorf("testkit: unexpected %s %s", req.Method, req.URL)
	}
	if match.hang {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	if match.err != nil {
		return nil, match.err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: match.status,
		Status:     fmt.Sprintf("%d %s", match.status, http.StatusText(match.status)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(match.body)),
		Request:    req,
	}, nil
}

// Calls returns the requests seen so far.
func (mt *MockTransport) Calls() []*http.Request {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]*http.Request, len(mt.calls))
	copy(out, mt.calls)
	return out
}

// AssertAllCalled fails t for every stub that never matched.
func (mt *MockTransport) AssertAllCalled(t *testing.T) {
	t.Helper()
	mt.mu.Lock()
	defer mt.mu.Unlock()
	for _, s := range mt.stubs {
		assert.NotZero(t, s.times, "stub %s %s was never called", s.method, s.prefix)
	}
}

// Install routes the shared outbound client through mt for the test.
func Install(t *testing.T, mt *MockTransport) {
	t.Helper()
	fhttp.DefaultClient.Transport = mt
	t.Cleanup(fhttp.ResetTransport)
}

// ErrRefused mimics a refused TCP connection.
var ErrRefused = fmt.Errorf("dial tcp: connect: connection refused")

