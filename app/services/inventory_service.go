package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
	"github.com/shashiranjanraj/ferremas/pkg/workerpool"
)

// RetryFunc schedules another reposition attempt for an order.
type RetryFunc func(ctx context.Context, orderID uint) error

type InventoryService struct {
	db    *gorm.DB
	retry RetryFunc
}

func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// SetRetry installs the fallback used when a reposition fails.
func (s *InventoryService) SetRetry(fn RetryFunc) { s.retry = fn }

// fulfilmentWarehouse returns the single warehouse of the configured type
// in branchID.
func fulfilmentWarehouse(tx *gorm.DB, branchID uint) (models.Warehouse, error) {
	typ := config.FulfillmentWarehouseType()
	var found []models.Warehouse
	if err := tx.Where("branch_id = ? AND type = ?", branchID, typ).Limit(2).Find(&found).Error; err != nil {
		return models.Warehouse{}, err
	}
	if len(found) != 1 {
		return models.Warehouse{}, &ConfigError{BranchID: branchID, Type: typ, Found: len(found)}
	}
	return found[0], nil
}

// lockInventory selects the (product, warehouse) row FOR UPDATE, creating
// it at zero when create is set.
func lockInventory(tx *gorm.DB, productID, warehouseID uint, create bool) (models.Inventory, error) {
	var inv models.Inventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&inv).Error
	if err == nil || !create || !errors.Is(err, gorm.ErrRecordNotFound) {
		return inv, err
	}

	inv = models.Inventory{ProductID: productID, WarehouseID: warehouseID}
	if err := tx.Create(&inv).Error; err != nil {
		return inv, err
	}
	return inv, nil
}

// move applies delta to a locked row and appends the history entry. A
// negative delta only succeeds while enough stock remains.
func move(tx *gorm.DB, inv *models.Inventory, delta int, h models.StockHistory) error {
	q := tx.Model(&models.Inventory{}).Where("id = ?", inv.ID)
	if delta < 0 {
		q = q.Where("quantity >= ?", -delta)
	}
	res := q.Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return &StockError{ProductID: inv.ProductID, Available: inv.Quantity, Requested: -delta}
	}
	inv.Quantity += delta

	h.ProductID = inv.ProductID
	h.WarehouseID = &inv.WarehouseID
	h.Delta = delta
	return tx.Create(&h).Error
}

func stockEvent(inv models.Inventory, delta int, h models.StockHistory) StockEvent {
	return StockEvent{
		ProductID:   inv.ProductID,
		WarehouseID: inv.WarehouseID,
		Delta:       delta,
		Quantity:    inv.Quantity,
		Reason:      h.Reason,
		OrderID:     h.OrderID,
		UserID:      h.UserID,
		At:          time.Now(),
	}
}

// Reposition returns the stock of a failed or cancelled order to the
// fulfilment warehouse. It runs at most once per order: the order row is
// locked and stock_restored_at marks completion. The result reports whether
// stock moved on this call.
func (s *InventoryService) Reposition(ctx context.Context, orderID uint) (bool, error) {
	var moved []StockEvent
	restored := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return notFound(err)
		}
		if order.StockRestoredAt != nil {
			return nil
		}

		wh, err := fulfilmentWarehouse(tx, order.BranchID)
		if err != nil {
			return err
		}

		var lines []models.OrderLine
		if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&lines).Error; err != nil {
			return err
		}
		for _, l := range lines {
			inv, err := lockInventory(tx, l.ProductID, wh.ID, true)
			if err != nil {
				return err
			}
			h := models.StockHistory{Reason: models.ReasonReposition, OrderID: &order.ID}
			if err := move(tx, &inv, l.Quantity, h); err != nil {
				return err
			}
			moved = append(moved, stockEvent(inv, l.Quantity, h))
		}

		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND stock_restored_at IS NULL", order.ID).
			Update("stock_restored_at", now)
		if res.Error != nil {
			return res.Error
		}
		restored = true
		return nil
	})

	switch {
	case err != nil:
		metrics.StockRepositions.WithLabelValues("failed").Inc()
		return false, err
	case !restored:
		metrics.StockRepositions.WithLabelValues("already_restored").Inc()
		return false, nil
	}

	metrics.StockRepositions.WithLabelValues("restored").Inc()
	for _, e := range moved {
		event.FireAsync(ctx, EventStockChanged, e)
	}
	event.FireAsync(ctx, EventStockRestored, map[string]uint{"order_id": orderID})
	return true, nil
}

// RepositionOrRetry runs Reposition and, when it fails, hands the order to
// the retry function. The error is logged, never returned: the caller's
// status change has already committed.
func (s *InventoryService) RepositionOrRetry(ctx context.Context, orderID uint) {
	if _, err := s.Reposition(ctx, orderID); err != nil {
		log := logger.WithCtx(ctx)
		log.Error("inventory: reposition failed", "order_id", orderID, "error", err)
		if s.retry == nil {
			return
		}
		if rerr := s.retry(context.WithoutCancel(ctx), orderID); rerr != nil {
			log.Error("inventory: could not schedule reposition retry", "order_id", orderID, "error", rerr)
		}
	}
}

// Sweep repositions every failed or cancelled order whose stock has not
// been returned yet. It reports how many orders were restored.
func (s *InventoryService) Sweep(ctx context.Context) (int, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ? AND stock_restored_at IS NULL", []string{models.StatusFailed, models.StatusCancelled}).
		Order("id").
		Limit(500).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	results := make([]bool, len(ids))
	pool := workerpool.New(4)
	for i, id := range ids {
		i, id := i, id
		err := pool.SubmitWait(func() {
			ok, err := s.Reposition(ctx, id)
			if err != nil {
				logger.WithCtx(ctx).Warn("inventory: sweep reposition failed", "order_id", id, "error", err)
				return
			}
			results[i] = ok
		})
		if err != nil {
			break
		}
	}
	pool.Shutdown()

	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n, nil
}

type AdjustInput struct {
	ProductID   uint   `json:"product_id" validate:"required"`
	WarehouseID uint   `json:"warehouse_id" validate:"required"`
	Delta       int    `json:"delta" validate:"required"`
	Reason      string `json:"reason" validate:"required,max=255"`
}

// Adjust applies a manual stock correction. Admins may adjust any
// warehouse; other staff only their own warehouse or their branch.
func (s *InventoryService) Adjust(ctx context.Context, actor Actor, in AdjustInput) (models.Inventory, error) {
	var (
		inv models.Inventory
		ev  StockEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wh models.Warehouse
		if err := tx.First(&wh, in.WarehouseID).Error; err != nil {
			return notFound(err)
		}
		if !canManage(actor, wh) {
			return ErrForbidden
		}
		var count int64
		if err := tx.Model(&models.Product{}).Where("id = ?", in.ProductID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUnknownProduct
		}

		var err error
		inv, err = lockInventory(tx, in.ProductID, in.WarehouseID, true)
		if err != nil {
			return err
		}
		h := models.StockHistory{Reason: models.ReasonAdjustment + ": " + in.Reason, UserID: actor.userPtr()}
		if err := move(tx, &inv, in.Delta, h); err != nil {
			return err
		}
		ev = stockEvent(inv, in.Delta, h)
		return nil
	})
	if err != nil {
		return models.Inventory{}, err
	}

	event.FireAsync(ctx, EventStockChanged, ev)
	return inv, nil
}

func canManage(a Actor, wh models.Warehouse) bool {
	switch {
	case a.IsAdmin():
		return true
	case !a.IsStaff():
		return false
	case a.WarehouseID != 0 && a.WarehouseID == wh.ID:
		return true
	case a.BranchID != 0 && a.BranchID == wh.BranchID:
		return true
	}
	return false
}

type InventoryFilter struct {
	ProductID   uint
	WarehouseID uint
	BranchID    uint
}

func (s *InventoryService) List(ctx context.Context, f InventoryFilter, page, limit int) ([]models.Inventory, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.Inventory{}).Order("inventory.id")
	if f.ProductID != 0 {
		q = q.Where("inventory.product_id = ?", f.ProductID)
	}
	if f.WarehouseID != 0 {
		q = q.Where("inventory.warehouse_id = ?", f.WarehouseID)
	}
	if f.BranchID != 0 {
		q = q.Where("inventory.warehouse_id IN (?)",
			s.db.Model(&models.Warehouse{}).Select("id").Where("branch_id = ?", f.BranchID))
	}

	var rows []models.Inventory
	p, err := orm.Paginate(q, page, limit, &rows, "Product", "Warehouse")
	return rows, p, err
}

type HistoryFilter struct {
	ProductID   uint
	WarehouseID uint
	OrderID     uint
}

func (s *InventoryService) History(ctx context.Context, f HistoryFilter, page, limit int) ([]models.StockHistory, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.StockHistory{}).Order("id DESC")
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}

	var rows []models.StockHistory
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}

// StockTotals sums inventory per product.
func StockTotals(db *gorm.DB, productIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uint
		Total     int64
	}
	err := db.Model(&models.Inventory{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS total").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ProductID] = r.Total
	}
	return out, nil
}
