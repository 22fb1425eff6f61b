package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/ferremas/app/integrations/webpay"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

// Gateway is the card gateway the payment flow drives.
type Gateway interface {
	Create(ctx context.Context, in webpay.CreateRequest) (webpay.CreateResponse, webpay.Exchange, error)
	Commit(ctx context.Context, token string) (webpay.CommitResponse, webpay.Exchange, error)
}

// Outcome is the result reported to the storefront after the gateway
// returns the buyer.
type Outcome string

const (
	OutcomeApproved Outcome = "aprobado"
	OutcomeRejected Outcome = "rechazado"
	OutcomeAborted  Outcome = "abortado"
	OutcomeError    Outcome = "error_confirmacion"
)

type PaymentService struct {
	db        *gorm.DB
	gateway   Gateway
	inventory *InventoryService
}

func NewPaymentService(db *gorm.DB, gw Gateway, inv *InventoryService) *PaymentService {
	return &PaymentService{db: db, gateway: gw, inventory: inv}
}

type StartResult struct {
	OrderID     uint   `json:"order_id"`
	Token       string `json:"token"`
	URL         string `json:"url"`
	RedirectURL string `json:"url_redirect"`
	BuyOrder    string `json:"buy_order"`
	Amount      int64  `json:"amount"`
}

// StartWebpay opens a gateway transaction for an order of the caller that
// is still in process.
func (s *PaymentService) StartWebpay(ctx context.Context, actor Actor, orderID uint) (*StartResult, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, notFound(err)
	}
	if order.CustomerID != actor.UserID {
		return nil, ErrNotFound
	}
	if order.Status != models.StatusInProcess {
		return nil, ErrOrderNotEditable
	}
	amount := order.Total.Round(0).IntPart()
	if amount <= 0 {
		return nil, ErrEmptyOrder
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	req := webpay.CreateRequest{
		BuyOrder:  fmt.Sprintf("ORD-%d-%s", order.ID, suffix),
		SessionID: uuid.NewString(),
		Amount:    amount,
		ReturnURL: config.WebpayReturnURL(),
	}

	resp, ex, err := s.gateway.Create(ctx, req)
	s.record(ctx, "webpay", ex, err, &order.ID)
	if err != nil {
		return nil, classifyGateway("webpay", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{"gateway_token": resp.Token, "buy_order": req.BuyOrder}).Error
	if err != nil {
		return nil, duplicate(err)
	}

	return &StartResult{
		OrderID:     order.ID,
		Token:       resp.Token,
		URL:         resp.URL,
		RedirectURL: resp.RedirectURL(),
		BuyOrder:    req.BuyOrder,
		Amount:      amount,
	}, nil
}

// ReturnParams are the fields the gateway posts back to the return URL.
type ReturnParams struct {
	TokenWS   string
	TBKToken  string
	TBKOrder  string
	TBKSesion string
}

type ReturnResult struct {
	Outcome  Outcome
	OrderID  uint
	Replayed bool
}

// HandleReturn settles a gateway callback. A normal return is committed
// once: replays find the recorded outcome and never reach the gateway. An
// abort or timeout cancels the order. Declines and aborts give the stock
// back after the status change has committed.
func (s *PaymentService) HandleReturn(ctx context.Context, p ReturnParams) (ReturnResult, error) {
	var (
		res ReturnResult
		err error
	)
	switch {
	case p.TokenWS != "":
		res, err = s.confirm(ctx, p.TokenWS)
	case p.TBKToken != "":
		res, err = s.abort(ctx, p.TBKToken, p.TBKOrder)
	case p.TBKOrder != "" || p.TBKSesion != "":
		res, err = s.abort(ctx, "", p.TBKOrder)
	default:
		res = ReturnResult{Outcome: OutcomeError}
	}

	metrics.PaymentOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	logger.WithCtx(ctx).Info("payment: gateway return",
		"order_id", res.OrderID, "outcome", res.Outcome, "replayed", res.Replayed, "error", err)
	return res, err
}

func (s *PaymentService) confirm(ctx context.Context, token string) (ReturnResult, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.Where("gateway_token = ?", token).First(&order).Error; err != nil {
		return ReturnResult{Outcome: OutcomeError}, notFound(err)
	}
	if res, done := s.recorded(ctx, order, token); done {
		return res, nil
	}

	resp, ex, err := s.gateway.Commit(ctx, token)
	s.record(ctx, "webpay", ex, err, &order.ID)
	if err != nil {
		// a concurrent callback may have won the commit
		if fresh, ferr := s.reload(ctx, order.ID); ferr == nil {
			if res, done := s.recorded(ctx, fresh, token); done {
				return res, nil
			}
		}
		return ReturnResult{Outcome: OutcomeError, OrderID: order.ID}, classifyGateway("webpay", err)
	}

	if resp.Approved() {
		return s.approve(ctx, order.ID, token, resp)
	}
	return s.decline(ctx, order.ID, token, resp)
}

// recorded reports the outcome of an order whose callback was already
// processed, either through its transaction row or its status.
func (s *PaymentService) recorded(ctx context.Context, order models.Order, token string) (ReturnResult, bool) {
	var tx models.PaymentTransaction
	err := s.db.WithContext(ctx).Where("gateway_transaction_id = ?", token).First(&tx).Error
	if err == nil {
		outcome := OutcomeRejected
		if tx.Status == models.TxApproved {
			outcome = OutcomeApproved
		}
		return ReturnResult{Outcome: outcome, OrderID: order.ID, Replayed: true}, true
	}
	if models.Terminal(order.Status) {
		return ReturnResult{Outcome: outcomeOf(order.Status), OrderID: order.ID, Replayed: true}, true
	}
	return ReturnResult{}, false
}

func outcomeOf(status string) Outcome {
	switch status {
	case models.StatusPaid, models.StatusPreparing, models.StatusDispatched, models.StatusDelivered:
		return OutcomeApproved
	case models.StatusFailed:
		return OutcomeRejected
	case models.StatusCancelled:
		return OutcomeAborted
	}
	return OutcomeError
}

func (s *PaymentService) reload(ctx context.Context, id uint) (models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, id).Error
	return order, err
}

// settle moves a locked in-process order to status and records the
// transaction. It reports false when another callback settled it first.
func settle(tx *gorm.DB, orderID uint, status string, ptx *models.PaymentTransaction) (models.Order, bool, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
		return order, false, err
	}
	if order.Status != models.StatusInProcess {
		return order, false, nil
	}
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.StatusInProcess).
		Update("status", status)
	if res.Error != nil {
		return order, false, res.Error
	}
	if res.RowsAffected == 0 {
		return order, false, nil
	}
	order.Status = status

	if ptx != nil {
		ptx.CustomerID = order.CustomerID
		ptx.OrderID = &order.ID
		if err := tx.Create(ptx).Error; err != nil {
			return order, false, duplicate(err)
		}
	}
	return order, true, nil
}

func (s *PaymentService) approve(ctx context.Context, orderID uint, token string, resp webpay.CommitResponse) (ReturnResult, error) {
	var (
		order   models.Order
		settled bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ptx := &models.PaymentTransaction{
			Status:               models.TxApproved,
			PaymentMethod:        models.PaymentWebpay,
			GatewayTransactionID: &token,
			AuthorizationCode:    resp.AuthorizationCode,
			CardLast4:            last4(resp.CardDetail.CardNumber),
			Description:          "Webpay " + resp.BuyOrder,
		}
		order, settled, err = settleWithAmount(tx, orderID, models.StatusPaid, ptx, resp)
		if err != nil || !settled {
			return err
		}
		entry := models.AccountingEntry{
			TransactionID: &ptx.ID,
			Description:   fmt.Sprintf("Pago Webpay pedido #%d (autorización %s)", order.ID, resp.AuthorizationCode),
			BookedOn:      today(),
		}
		return tx.Create(&entry).Error
	})
	if errors.Is(err, ErrConflict) {
		return s.chargedButSettled(ctx, orderID, token, resp)
	}
	if err != nil {
		return ReturnResult{Outcome: OutcomeError, OrderID: orderID}, err
	}
	if !settled {
		return s.chargedButSettled(ctx, orderID, token, resp)
	}

	event.FireAsync(ctx, EventOrderPaid, OrderEvent{
		OrderID: order.ID, CustomerID: order.CustomerID, Status: order.Status, Total: order.Total,
		Email: order.ContactEmail, AuthorizationCode: resp.AuthorizationCode,
	})
	return ReturnResult{Outcome: OutcomeApproved, OrderID: order.ID}, nil
}

func (s *PaymentService) decline(ctx context.Context, orderID uint, token string, resp webpay.CommitResponse) (ReturnResult, error) {
	var (
		order   models.Order
		settled bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ptx := &models.PaymentTransaction{
			Status:               models.TxRejected,
			PaymentMethod:        models.PaymentWebpay,
			GatewayTransactionID: &token,
			CardLast4:            last4(resp.CardDetail.CardNumber),
			Description:          fmt.Sprintf("Webpay %s rechazado (código %d, %s)", resp.BuyOrder, resp.ResponseCode, resp.Status),
		}
		order, settled, err = settleWithAmount(tx, orderID, models.StatusFailed, ptx, resp)
		return err
	})
	if errors.Is(err, ErrConflict) {
		return s.replayed(ctx, orderID, token)
	}
	if err != nil {
		return ReturnResult{Outcome: OutcomeError, OrderID: orderID}, err
	}
	if !settled {
		return s.replayed(ctx, orderID, token)
	}

	s.inventory.RepositionOrRetry(ctx, order.ID)
	event.FireAsync(ctx, EventOrderFailed, OrderEvent{
		OrderID: order.ID, CustomerID: order.CustomerID, Status: order.Status, Total: order.Total,
		Email: order.ContactEmail,
	})
	return ReturnResult{Outcome: OutcomeRejected, OrderID: order.ID}, nil
}

// settleWithAmount fills the transaction amount from the gateway reply,
// falling back to the order total.
func settleWithAmount(tx *gorm.DB, orderID uint, status string, ptx *models.PaymentTransaction, resp webpay.CommitResponse) (models.Order, bool, error) {
	ptx.Amount = resp.Amount
	if !ptx.Amount.IsPositive() {
		var o models.Order
		if err := tx.Select("total").First(&o, orderID).Error; err != nil {
			return o, false, err
		}
		ptx.Amount = o.Total
	}
	return settle(tx, orderID, status, ptx)
}

func (s *PaymentService) replayed(ctx context.Context, orderID uint, token string) (ReturnResult, error) {
	order, err := s.reload(ctx, orderID)
	if err != nil {
		return ReturnResult{Outcome: OutcomeError, OrderID: orderID}, err
	}
	res, _ := s.recorded(ctx, order, token)
	res.OrderID = orderID
	res.Replayed = true
	if res.Outcome == "" {
		res.Outcome = OutcomeError
	}
	return res, nil
}

// chargedButSettled handles an authorized commit that lost the race to
// another callback. When that callback was an abort, the card is charged
// on a cancelled order and the money has to be returned by hand.
func (s *PaymentService) chargedButSettled(ctx context.Context, orderID uint, token string, resp webpay.CommitResponse) (ReturnResult, error) {
	res, err := s.replayed(ctx, orderID, token)
	if err != nil || res.Outcome == OutcomeApproved {
		return res, err
	}
	logger.WithCtx(ctx).Error("payment: card charged on settled order, refund required",
		"order_id", orderID, "outcome", res.Outcome, "buy_order", resp.BuyOrder,
		"authorization_code", resp.AuthorizationCode, "amount", resp.Amount.String())
	LogActivity(ctx, s.db, nil, "refund_required",
		fmt.Sprintf("order %d: webpay %s authorized (code %s, amount %s) after the order was %s",
			orderID, resp.BuyOrder, resp.AuthorizationCode, resp.Amount.String(), res.Outcome))
	return res, nil
}

func (s *PaymentService) abort(ctx context.Context, token, buyOrder string) (ReturnResult, error) {
	order, err := s.findAborted(ctx, token, buyOrder)
	if err != nil {
		return ReturnResult{Outcome: OutcomeError}, err
	}

	var settled bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, settled, err = settle(tx, order.ID, models.StatusCancelled, nil)
		return err
	})
	if err != nil {
		return ReturnResult{Outcome: OutcomeError, OrderID: order.ID}, err
	}
	if !settled {
		return ReturnResult{Outcome: outcomeOf(order.Status), OrderID: order.ID, Replayed: true}, nil
	}

	s.inventory.RepositionOrRetry(ctx, order.ID)
	event.FireAsync(ctx, EventOrderCancelled, OrderEvent{
		OrderID: order.ID, CustomerID: order.CustomerID, Status: order.Status, Total: order.Total,
		Email: order.ContactEmail,
	})
	return ReturnResult{Outcome: OutcomeAborted, OrderID: order.ID}, nil
}

// findAborted looks the order up by its stored token, then by the id
// encoded in the buy order ("ORD-<id>-<suffix>").
func (s *PaymentService) findAborted(ctx context.Context, token, buyOrder string) (models.Order, error) {
	db := s.db.WithContext(ctx)
	var order models.Order
	if token != "" {
		err := db.Where("gateway_token = ?", token).First(&order).Error
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return order, err
		}
	}

	id, ok := orderIDFromBuyOrder(buyOrder)
	if !ok {
		return order, ErrNotFound
	}
	if err := db.First(&order, id).Error; err != nil {
		return order, notFound(err)
	}
	// the id is guessable; only the buy order we issued proves the callback
	if order.BuyOrder == "" || order.BuyOrder != buyOrder {
		return models.Order{}, ErrNotFound
	}
	return order, nil
}

func orderIDFromBuyOrder(buyOrder string) (uint, bool) {
	rest, ok := strings.CutPrefix(buyOrder, "ORD-")
	if !ok {
		return 0, false
	}
	digits, _, _ := strings.Cut(rest, "-")
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// record persists one gateway exchange. Failures to log are only logged.
func (s *PaymentService) record(ctx context.Context, service string, ex webpay.Exchange, callErr error, orderID *uint) {
	entry := IntegrationEntry{
		Service:    service,
		Operation:  ex.Operation,
		Method:     ex.Method,
		Endpoint:   ex.URL,
		StatusCode: ex.StatusCode,
		Elapsed:    ex.Elapsed,
		Request:    ex.Request,
		Response:   ex.Response,
		Err:        callErr,
		OrderID:    orderID,
	}
	RecordIntegration(ctx, s.db, entry)
}

// IntegrationEntry is the input of RecordIntegration.
type IntegrationEntry struct {
	Service    string
	Operation  string
	Method     string
	Endpoint   string
	StatusCode int
	Elapsed    time.Duration
	Request    []byte
	Response   []byte
	Err        error
	OrderID    *uint
}

const maxLoggedPayload = 16 << 10

// RecordIntegration writes an IntegrationLog row.
func RecordIntegration(ctx context.Context, db *gorm.DB, e IntegrationEntry) {
	row := models.IntegrationLog{
		Service:    e.Service,
		Operation:  e.Operation,
		Method:     e.Method,
		Endpoint:   e.Endpoint,
		StatusCode: e.StatusCode,
		DurationMS: e.Elapsed.Milliseconds(),
		Request:    clip(e.Request),
		Response:   clip(e.Response),
		Success:    e.Err == nil,
		OrderID:    e.OrderID,
	}
	if e.Err != nil {
		row.Error = e.Err.Error()
	}
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		logger.WithCtx(ctx).Error("integration: write log", "service", e.Service, "error", err)
	}
}

func clip(b []byte) string {
	if len(b) > maxLoggedPayload {
		return string(b[:maxLoggedPayload])
	}
	return string(b)
}

func classifyGateway(service string, err error) error {
	kind := GatewayUnavailable
	var se *fhttp.StatusError
	switch {
	case fhttp.IsTimeout(err):
		kind = GatewayTimeout
	case errors.As(err, &se), errors.Is(err, webpay.ErrBadResponse):
		kind = GatewayBadResponse
	}
	return &GatewayError{Service: service, Kind: kind, Err: err}
}

func last4(card string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, card)
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}

func today() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResultURL is the storefront page the buyer lands on after paying.
func ResultURL(res ReturnResult) string {
	u := config.FrontendURL() + "/pago/resultado?status=" + string(res.Outcome)
	if res.OrderID != 0 {
		u += "&pedido_id=" + strconv.FormatUint(uint64(res.OrderID), 10)
	}
	return u
}

type TransactionFilter struct {
	OrderID uint
	Status  string
}

// Transactions lists payment transactions; customers only see theirs.
func (s *PaymentService) Transactions(ctx context.Context, actor Actor, f TransactionFilter, page, limit int) ([]models.PaymentTransaction, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Order("id DESC")
	if !actor.Is(models.RoleAdmin, models.RoleAccountant) {
		q = q.Where("customer_id = ?", actor.UserID)
	}
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var rows []models.PaymentTransaction
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}

func (s *PaymentService) AccountingEntries(ctx context.Context, page, limit int) ([]models.AccountingEntry, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.AccountingEntry{}).Order("booked_on DESC, id DESC")
	var rows []models.AccountingEntry
	p, err := orm.Paginate(q, page, limit, &rows, "Transaction")
	return rows, p, err
}

type IntegrationFilter struct {
	Service string
	OrderID uint
	Failed  bool
}

func (s *PaymentService) IntegrationLogs(ctx context.Context, f IntegrationFilter, page, limit int) ([]models.IntegrationLog, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.IntegrationLog{}).Order("id DESC")
	if f.Service != "" {
		q = q.Where("service = ?", f.Service)
	}
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Failed {
		q = q.Where("success = ?", false)
	}
	var rows []models.IntegrationLog
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}
