package webpay_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/integrations/webpay"
	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/testkit"
)

const (
	base   = "https://webpay.test"
	txPath = base + "/rswebpaytransaction/api/webpay/v1.2/transactions"
)

func client() *webpay.Client {
	return &webpay.Client{BaseURL: base, CommerceCode: "597055555532", APIKey: "secret", Timeout: 100 * time.Millisecond}
}

func TestCreateSendsCredentialsAndBody(t *testing.T) {
	mt := testkit.NewMockTransport()
	mt.On("POST", txPath).ReplyJSON(200, map[string]string{"token": "01ab", "url": base + "/webpayserver/initTransaction"})
	testkit.Install(t, mt)

	out, ex, err := client().Create(context.Background(), webpay.CreateRequest{
		BuyOrder: "ORD-7-deadbeef", SessionID: "s-1", Amount: 15990, ReturnURL: "https://shop.test/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "01ab", out.Token)
	assert.Equal(t, base+"/webpayserver/initTransaction?token_ws=01ab", out.RedirectURL())

	assert.Equal(t, "create", ex.Operation)
	assert.Equal(t, http.MethodPost, ex.Method)
	assert.Equal(t, txPath, ex.URL)
	assert.Equal(t, 200, ex.StatusCode)
	assert.JSONEq(t, `{"buy_order":"ORD-7-deadbeef","session_id":"s-1","amount":15990,"return_url":"https://shop.test/return"}`, string(ex.Request))

	calls := mt.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "597055555532", calls[0].Header.Get("Tbk-Api-Key-Id"))
	assert.Equal(t, "secret", calls[0].Header.Get("Tbk-Api-Key-Secret"))
	raw, err := io.ReadAll(calls[0].Body)
	require.NoError(t, err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.EqualValues(t, 15990, sent["amount"])
}

func TestCommitPutsToken(t *testing.T) {
	mt := testkit.NewMockTransport()
	mt.On("PUT", txPath+"/01ab").ReplyJSON(200, map[string]any{
		"status": "AUTHORIZED", "response_code": 0, "amount": 15990, "buy_order": "ORD-7-deadbeef",
		"authorization_code": "1213", "card_detail": map[string]string{"card_number": "6623"},
	})
	testkit.Install(t, mt)

	out, ex, err := client().Commit(context.Background(), "01ab")
	require.NoError(t, err)
	assert.True(t, out.Approved())
	assert.Equal(t, "1213", out.AuthorizationCode)
	assert.Equal(t, "6623", out.CardDetail.CardNumber)
	assert.Equal(t, "15990", out.Amount.String())
	assert.Equal(t, http.MethodPut, ex.Method)
	assert.Empty(t, ex.Request)
	assert.NotEmpty(t, ex.Response)
}

func TestApprovedNeedsCodeAndStatus(t *testing.T) {
	assert.False(t, webpay.CommitResponse{Status: "AUTHORIZED", ResponseCode: -1}.Approved())
	assert.False(t, webpay.CommitResponse{Status: "FAILED"}.Approved())
}

func TestCallFailures(t *testing.T) {
	tests := []struct {
		name    string
		stub    func(s *testkit.Stub)
		timeout bool
		status  int
	}{
		{name: "http error", stub: func(s *testkit.Stub) { s.Reply(500, `{"error_message":"boom"}`) }, status: 500},
		{name: "bad body", stub: func(s *testkit.Stub) { s.Reply(200, "<html>") }, status: 200},
		{name: "hang", stub: func(s *testkit.Stub) { s.Hang() }, timeout: true},
		{name: "refused", stub: func(s *testkit.Stub) { s.Fail(testkit.ErrRefused) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := testkit.NewMockTransport()
			tt.stub(mt.On("PUT", txPath))
			testkit.Install(t, mt)

			_, ex, err := client().Commit(context.Background(), "01ab")
			require.Error(t, err)
			assert.Equal(t, tt.status, ex.StatusCode)
			assert.Equal(t, tt.timeout, fhttp.IsTimeout(err))

			var se *fhttp.StatusError
			assert.Equal(t, tt.name == "http error", errors.As(err, &se))
			assert.Equal(t, tt.name == "bad body", errors.Is(err, webpay.ErrBadResponse))
		})
	}
}
