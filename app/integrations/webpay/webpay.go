// Package webpay is the Webpay Plus REST client (create and commit of a
// card transaction). Every call returns an Exchange describing what went on
// the wire so callers can persist it.
package webpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/ferremas/config"
	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
)

const transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

// ErrBadResponse marks a 2xx reply whose body could not be decoded.
var ErrBadResponse = errors.New("webpay: malformed response")

// Client talks to one Webpay environment.
type Client struct {
	BaseURL      string
	CommerceCode string
	APIKey       string
	Timeout      time.Duration
}

// FromConfig builds a client from WEBPAY_* settings.
func FromConfig() *Client {
	return &Client{
		BaseURL:      config.WebpayBaseURL(),
		CommerceCode: config.WebpayCommerceCode(),
		APIKey:       config.WebpayAPIKey(),
		Timeout:      config.GatewayTimeout(),
	}
}

type CreateRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type CreateResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// RedirectURL is where the buyer's browser is sent to pay.
func (r CreateResponse) RedirectURL() string {
	return r.URL + "?token_ws=" + url.QueryEscape(r.Token)
}

type CardDetail struct {
	CardNumber string `json:"card_number"`
}

type CommitResponse struct {
	VCI                string          `json:"vci"`
	Amount             decimal.Decimal `json:"amount"`
	Status             string          `json:"status"`
	BuyOrder           string          `json:"buy_order"`
	SessionID          string          `json:"session_id"`
	CardDetail         CardDetail      `json:"card_detail"`
	AccountingDate     string          `json:"accounting_date"`
	TransactionDate    string          `json:"transaction_date"`
	AuthorizationCode  string          `json:"authorization_code"`
	PaymentTypeCode    string          `json:"payment_type_code"`
	ResponseCode       int             `json:"response_code"`
	InstallmentsNumber int             `json:"installments_number"`
}

// Approved reports an authorised payment.
func (r CommitResponse) Approved() bool {
	return r.ResponseCode == 0 && r.Status == "AUTHORIZED"
}

// Exchange is the record of one call.
type Exchange struct {
	Operation  string
	Method     string
	URL        string
	StatusCode int
	Elapsed    time.Duration
	Request    []byte
	Response   []byte
}

// Create opens a transaction and returns the token to redirect with.
func (c *Client) Create(ctx context.Context, in CreateRequest) (CreateResponse, Exchange, error) {
	var out CreateResponse
	ex, err := c.call(ctx, "create", "POST", c.BaseURL+transactionsPath, in, &out)
	return out, ex, err
}

// Commit confirms the transaction identified by token. It is never
// retried: a second commit of the same token is rejected by the gateway.
func (c *Client) Commit(ctx context.Context, token string) (CommitResponse, Exchange, error) {
	var out CommitResponse
	endpoint := c.BaseURL + transactionsPath + "/" + url.PathEscape(token)
	ex, err := c.call(ctx, "commit", "PUT", endpoint, nil, &out)
	return out, ex, err
}

func (c *Client) call(ctx context.Context, op, method, endpoint string, body, dest interface{}) (Exchange, error) {
	ex := Exchange{Operation: op, Method: method, URL: endpoint}

	var req *fhttp.Request
	if method == "PUT" {
		req = fhttp.Put(endpoint)
	} else {
		req = fhttp.Post(endpoint)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return ex, fmt.Errorf("webpay: encode %s: %w", op, err)
		}
		ex.Request = raw
		req = req.Body(json.RawMessage(raw))
	}

	start := time.Now()
	resp, err := req.
		WithContext(ctx).
		Headers(map[string]string{
			"Tbk-Api-Key-Id":     c.CommerceCode,
			"Tbk-Api-Key-Secret": c.APIKey,
		}).
		Timeout(c.Timeout).
		Send()
	ex.Elapsed = time.Since(start)
	if err != nil {
		outcome := "error"
		if fhttp.IsTimeout(err) {
			outcome = "timeout"
		}
		metrics.ObserveGateway("webpay", op, outcome, ex.Elapsed)
		return ex, fmt.Errorf("webpay: %s: %w", op, err)
	}

	ex.StatusCode = resp.StatusCode
	ex.Response = resp.Raw
	if err := resp.Throw(); err != nil {
		metrics.ObserveGateway("webpay", op, "http_error", ex.Elapsed)
		return ex, fmt.Errorf("webpay: %s: %w", op, err)
	}
	if err := resp.JSON(dest); err != nil {
		metrics.ObserveGateway("webpay", op, "bad_body", ex.Elapsed)
		return ex, fmt.Errorf("%w (%s): %w", ErrBadResponse, op, err)
	}

	metrics.ObserveGateway("webpay", op, "ok", ex.Elapsed)
	return ex, nil
}
