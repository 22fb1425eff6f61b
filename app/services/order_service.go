package services

import (
	"context"
	"errors"
	"slices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

type OrderItem struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gte=1"`
}

type CreateOrderInput struct {
	BranchID        uint        `json:"branch_id" validate:"required"`
	DeliveryType    string      `json:"delivery_type" validate:"required,in=pickup,shipping"`
	PaymentMethod   string      `json:"payment_method" validate:"required,in=webpay,transfer,cash"`
	ShippingAddress string      `json:"shipping_address" validate:"max=500"`
	ShippingCommune string      `json:"shipping_commune" validate:"max=100"`
	ContactPhone    string      `json:"contact_phone" validate:"max=15"`
	ContactEmail    string      `json:"contact_email" validate:"nullable,email"`
	Items           []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type mergedItem struct {
	index     int
	productID uint
	quantity  int
}

// merge folds repeated product ids into one item, keeping the position of
// the first occurrence.
func merge(items []OrderItem) []mergedItem {
	out := make([]mergedItem, 0, len(items))
	pos := make(map[uint]int, len(items))
	for i, it := range items {
		if j, ok := pos[it.ProductID]; ok {
			out[j].quantity += it.Quantity
			continue
		}
		pos[it.ProductID] = len(out)
		out = append(out, mergedItem{index: i, productID: it.ProductID, quantity: it.Quantity})
	}
	return out
}

// Create places an order for the actor's customer profile. Stock for every
// item is taken from the branch's fulfilment warehouse under a row lock;
// any failure rolls back the whole order.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	items := merge(in.Items)

	var (
		order models.Order
		moved []StockEvent
		user  models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Preload("User").First(&customer, "user_id = ?", actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCustomerProfile
			}
			return err
		}
		if customer.User != nil {
			user = *customer.User
		}

		var branch models.Branch
		if err := tx.First(&branch, in.BranchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownBranch
			}
			return err
		}
		wh, err := fulfilmentWarehouse(tx, branch.ID)
		if err != nil {
			return err
		}

		order = models.Order{
			CustomerID:      customer.UserID,
			BranchID:        branch.ID,
			Status:          models.StatusInProcess,
			DeliveryType:    in.DeliveryType,
			PaymentMethod:   in.PaymentMethod,
			Total:           decimal.Zero,
			ShippingAddress: in.ShippingAddress,
			ShippingCommune: in.ShippingCommune,
			ContactPhone:    in.ContactPhone,
			ContactEmail:    in.ContactEmail,
		}
		if order.ShippingCommune != "" {
			commune, err := requireCommune(ctx, tx, order.ShippingCommune)
			if err != nil {
				return err
			}
			order.ShippingCommune, order.ShippingCommuneID = commune.Name, &commune.ID
		}
		if order.DeliveryType == models.DeliveryShipping {
			if order.ShippingAddress == "" {
				order.ShippingAddress = customer.Address
			}
			if order.ShippingCommune == "" {
				order.ShippingCommune, order.ShippingCommuneID = customer.Commune, customer.CommuneID
			}
		}
		if order.ContactPhone == "" {
			order.ContactPhone = customer.Phone
		}
		if order.ContactEmail == "" {
			order.ContactEmail = user.Email
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.productID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ItemError{Index: it.index, ProductID: it.productID, Err: ErrUnknownProduct}
				}
				return err
			}

			inv, err := lockInventory(tx, p.ID, wh.ID, false)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &StockError{Index: it.index, ProductID: p.ID, Available: 0, Requested: it.quantity}
			}
			if err != nil {
				return err
			}
			if inv.Quantity < it.quantity {
				return &StockError{Index: it.index, ProductID: p.ID, Available: inv.Quantity, Requested: it.quantity}
			}

			h := models.StockHistory{Reason: models.ReasonOrder, OrderID: &order.ID, UserID: actor.userPtr()}
			if err := move(tx, &inv, -it.quantity, h); err != nil {
				var se *StockError
				if errors.As(err, &se) {
					se.Index = it.index
				}
				return err
			}
			moved = append(moved, stockEvent(inv, -it.quantity, h))

			line := models.OrderLine{OrderID: order.ID, ProductID: p.ID, Quantity: it.quantity, UnitPrice: p.Price}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}

		return recomputeTotal(tx, &order)
	})
	if err != nil {
		metrics.OrdersCreated.WithLabelValues(createOutcome(err)).Inc()
		return nil, err
	}
	metrics.OrdersCreated.WithLabelValues("created").Inc()
	logger.WithCtx(ctx).Info("order: created", "order_id", order.ID, "total", order.Total.String(), "items", len(items))

	for _, e := range moved {
		event.FireAsync(ctx, EventStockChanged, e)
	}
	event.FireAsync(ctx, EventOrderCreated, OrderEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Total:      order.Total,
		Email:      order.ContactEmail,
		Customer:   user.FullName(),
		ActorID:    actor.UserID,
	})

	return s.load(ctx, order.ID)
}

func createOutcome(err error) string {
	var (
		se *StockError
		ie *ItemError
	)
	switch {
	case errors.As(err, &se):
		return "insufficient_stock"
	case errors.As(err, &ie), errors.Is(err, ErrCustomerProfile), errors.Is(err, ErrUnknownBranch):
		return "invalid"
	}
	return "error"
}

// RecomputeTotal sets the order total to the sum of its line subtotals and
// persists it only when it changed.
func (s *OrderService) RecomputeTotal(ctx context.Context, orderID uint) (decimal.Decimal, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err)
		}
		return recomputeTotal(tx, &order)
	})
	return order.Total, err
}

func recomputeTotal(tx *gorm.DB, order *models.Order) error {
	var lines []models.OrderLine
	if err := tx.Where("order_id = ?", order.ID).Find(&lines).Error; err != nil {
		return err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	if total.Equal(order.Total) {
		return nil
	}
	order.Total = total
	return tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("total", total).Error
}

func (s *OrderService) load(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		First(&order, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// Get returns an order with its lines. Customers only see their own.
func (s *OrderService) Get(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.CustomerID != actor.UserID {
		return nil, ErrNotFound
	}
	return order, nil
}

// Status reads only the status column. Callers check access with Get first.
func (s *OrderService) Status(ctx context.Context, id uint) (string, error) {
	var status []string
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	if len(status) == 0 {
		return "", ErrNotFound
	}
	return status[0], nil
}

type OrderFilter struct {
	Status     string
	CustomerID uint
	BranchID   uint
}

func (s *OrderService) List(ctx context.Context, actor Actor, f OrderFilter, page, limit int) ([]models.Order, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).Order("created_at DESC, id DESC")
	if !actor.IsStaff() {
		f.CustomerID = actor.UserID
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BranchID != 0 {
		q = q.Where("branch_id = ?", f.BranchID)
	}

	var orders []models.Order
	p, err := orm.Paginate(q, page, limit, &orders)
	return orders, p, err
}

// AddLine adds a product to an order that is still in process, taking the
// stock from the fulfilment warehouse.
func (s *OrderService) AddLine(ctx context.Context, actor Actor, orderID uint, in OrderItem) (*models.Order, error) {
	var moved StockEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockEditable(tx, orderID)
		if err != nil {
			return err
		}
		wh, err := fulfilmentWarehouse(tx, order.BranchID)
		if err != nil {
			return err
		}
		var p models.Product
		if err := tx.First(&p, in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ItemError{ProductID: in.ProductID, Err: ErrUnknownProduct}
			}
			return err
		}

		inv, err := lockInventory(tx, p.ID, wh.ID, false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &StockError{ProductID: p.ID, Requested: in.Quantity}
		}
		if err != nil {
			return err
		}
		h := models.StockHistory{Reason: models.ReasonOrder, OrderID: &order.ID, UserID: actor.userPtr()}
		if err := move(tx, &inv, -in.Quantity, h); err != nil {
			return err
		}
		moved = stockEvent(inv, -in.Quantity, h)

		var line models.OrderLine
		err = tx.Where("order_id = ? AND product_id = ?", order.ID, p.ID).First(&line).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			line = models.OrderLine{OrderID: order.ID, ProductID: p.ID, Quantity: in.Quantity, UnitPrice: p.Price}
			err = tx.Create(&line).Error
		case err == nil:
			line.Quantity += in.Quantity
			err = tx.Save(&line).Error
		}
		if err != nil {
			return err
		}
		return recomputeTotal(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	event.FireAsync(ctx, EventStockChanged, moved)
	return s.load(ctx, orderID)
}

// RemoveLine deletes a line of an order in process and returns its stock.
func (s *OrderService) RemoveLine(ctx context.Context, actor Actor, orderID, lineID uint) (*models.Order, error) {
	var moved StockEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockEditable(tx, orderID)
		if err != nil {
			return err
		}
		var line models.OrderLine
		if err := tx.Where("id = ? AND order_id = ?", lineID, order.ID).First(&line).Error; err != nil {
			return notFound(err)
		}
		wh, err := fulfilmentWarehouse(tx, order.BranchID)
		if err != nil {
			return err
		}
		inv, err := lockInventory(tx, line.ProductID, wh.ID, true)
		if err != nil {
			return err
		}
		h := models.StockHistory{Reason: models.ReasonReposition, OrderID: &order.ID, UserID: actor.userPtr()}
		if err := move(tx, &inv, line.Quantity, h); err != nil {
			return err
		}
		moved = stockEvent(inv, line.Quantity, h)

		if err := tx.Delete(&line).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	event.FireAsync(ctx, EventStockChanged, moved)
	return s.load(ctx, orderID)
}

func lockEditable(tx *gorm.DB, orderID uint) (models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
		return order, notFound(err)
	}
	if order.Status != models.StatusInProcess {
		return order, ErrOrderNotEditable
	}
	return order, nil
}

// fulfilment moves an order may make once paid.
var transitions = map[string][]string{
	models.StatusPaid:       {models.StatusPreparing},
	models.StatusPreparing:  {models.StatusDispatched, models.StatusDelivered},
	models.StatusDispatched: {models.StatusDelivered},
}

// Transition advances a paid order through preparation and delivery and
// records which staff member handled it.
func (s *OrderService) Transition(ctx context.Context, actor Actor, orderID uint, to string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return notFound(err)
		}
		if !slices.Contains(transitions[order.Status], to) {
			return ErrInvalidTransition
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", to).Error; err != nil {
			return err
		}
		order.Status = to

		proc := models.OrderProcessing{OrderID: order.ID}
		columns := []string{"updated_at"}
		switch actor.Role {
		case models.RoleSeller, models.RoleAdmin:
			proc.SellerID = actor.userPtr()
			columns = append(columns, "seller_id")
		case models.RoleWarehouse:
			proc.WarehouseUserID = actor.userPtr()
			columns = append(columns, "warehouse_user_id")
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&proc).Error
	})
	if err != nil {
		return nil, err
	}

	event.FireAsync(ctx, EventOrderStatusChanged, OrderEvent{
		OrderID: order.ID, CustomerID: order.CustomerID, Status: to, Total: order.Total,
		Email: order.ContactEmail, ActorID: actor.UserID,
	})
	return s.load(ctx, orderID)
}

// Processing returns who handled an order, if anyone has.
func (s *OrderService) Processing(ctx context.Context, orderID uint) (*models.OrderProcessing, error) {
	var p models.OrderProcessing
	if err := s.db.WithContext(ctx).First(&p, "order_id = ?", orderID).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Lookups returns the reference tables used by order forms.
func (s *OrderService) Lookups(ctx context.Context) (map[string]interface{}, error) {
	var (
		statuses   []models.OrderStatus
		delivery   []models.DeliveryType
		methods    []models.PaymentMethod
		txStatuses []models.TransactionStatus
	)
	db := s.db.WithContext(ctx)
	for _, dest := range []interface{}{&statuses, &delivery, &methods, &txStatuses} {
		if err := db.Order("code").Find(dest).Error; err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{
		"order_statuses":       statuses,
		"delivery_types":       delivery,
		"payment_methods":      methods,
		"transaction_statuses": txStatuses,
	}, nil
}
