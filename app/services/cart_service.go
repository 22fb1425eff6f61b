package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
)

type CartService struct {
	db     *gorm.DB
	orders *OrderService
}

func NewCartService(db *gorm.DB, orders *OrderService) *CartService {
	return &CartService{db: db, orders: orders}
}

// cartOf returns the actor's cart, creating it on first use.
func cartOf(tx *gorm.DB, actor Actor) (models.Cart, error) {
	var n int64
	if err := tx.Model(&models.Customer{}).Where("user_id = ?", actor.UserID).Count(&n).Error; err != nil {
		return models.Cart{}, err
	}
	if n == 0 {
		return models.Cart{}, ErrCustomerProfile
	}

	var cart models.Cart
	err := tx.Where(models.Cart{CustomerID: actor.UserID}).FirstOrCreate(&cart).Error
	return cart, err
}

func (s *CartService) Get(ctx context.Context, actor Actor) (*models.Cart, error) {
	cart, err := cartOf(s.db.WithContext(ctx), actor)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		First(&cart, cart.ID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Add puts a product in the cart, adding to the quantity already there.
func (s *CartService) Add(ctx context.Context, actor Actor, in OrderItem) (*models.Cart, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := cartOf(tx, actor)
		if err != nil {
			return err
		}
		if err := tx.First(&models.Product{}, in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownProduct
			}
			return err
		}

		var item models.CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, in.ProductID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{CartID: cart.ID, ProductID: in.ProductID, Quantity: in.Quantity}
			err = tx.Create(&item).Error
		case err == nil:
			err = tx.Model(&item).Update("quantity", gorm.Expr("quantity + ?", in.Quantity)).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&cart).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

type QuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// SetQuantity overwrites an item's quantity; zero removes it.
func (s *CartService) SetQuantity(ctx context.Context, actor Actor, productID uint, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, actor, productID)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := cartOf(tx, actor)
		if err != nil {
			return err
		}
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Update("quantity", quantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *CartService) Remove(ctx context.Context, actor Actor, productID uint) (*models.Cart, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := cartOf(tx, actor)
		if err != nil {
			return err
		}
		res := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&models.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *CartService) Clear(ctx context.Context, actor Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := cartOf(tx, actor)
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
}

type CheckoutInput struct {
	BranchID        uint   `json:"branch_id" validate:"required"`
	DeliveryType    string `json:"delivery_type" validate:"required,in=pickup,shipping"`
	PaymentMethod   string `json:"payment_method" validate:"required,in=webpay,transfer,cash"`
	ShippingAddress string `json:"shipping_address" validate:"max=500"`
	ShippingCommune string `json:"shipping_commune" validate:"max=100"`
	ContactPhone    string `json:"contact_phone" validate:"max=15"`
	ContactEmail    string `json:"contact_email" validate:"nullable,email"`
}

// Checkout turns the cart into an order and empties it. The cart is left
// untouched when the order is rejected.
func (s *CartService) Checkout(ctx context.Context, actor Actor, in CheckoutInput) (*models.Order, error) {
	cart, err := s.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	items := make([]OrderItem, len(cart.Items))
	for i, it := range cart.Items {
		items[i] = OrderItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	order, err := s.orders.Create(ctx, actor, CreateOrderInput{
		BranchID:        in.BranchID,
		DeliveryType:    in.DeliveryType,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: in.ShippingAddress,
		ShippingCommune: in.ShippingCommune,
		ContactPhone:    in.ContactPhone,
		ContactEmail:    in.ContactEmail,
		Items:           items,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return nil, err
	}
	return order, nil
}
