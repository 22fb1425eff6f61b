package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownBranch      = errors.New("unknown branch")
	ErrCustomerProfile    = errors.New("authenticated user has no customer profile")
	ErrOrderNotEditable   = errors.New("order is no longer in process")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRateNotFound       = errors.New("exchange rate not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInUse              = errors.New("still referenced")
)

// StockError reports an item whose quantity cannot be served, or an
// adjustment that would leave a negative quantity.
type StockError struct {
	Index     int  `json:"index"`
	ProductID uint `json:"product_id"`
	Available int  `json:"available"`
	Requested int  `json:"requested"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// ItemError ties an error to the position of an item in the request.
type ItemError struct {
	Index     int
	ProductID uint
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (product %d): %v", e.Index, e.ProductID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ConfigError means a branch does not have exactly one warehouse of the
// fulfilment type.
type ConfigError struct {
	BranchID uint
	Type     string
	Found    int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("branch %d has %d warehouses of type %q, expected exactly one",
		e.BranchID, e.Found, e.Type)
}

// GatewayKind classifies a failed call to an external provider.
type GatewayKind string

const (
	GatewayTimeout     GatewayKind = "timeout"
	GatewayUnavailable GatewayKind = "unavailable"
	GatewayBadResponse GatewayKind = "bad_response"
)

type GatewayError struct {
	Service string
	Kind    GatewayKind
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway %s: %v", e.Service, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// notFound maps gorm's sentinel to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// duplicate maps unique-constraint violations to ErrConflict. Drivers
// without an error translator are matched on their message.
func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate") {
		return ErrConflict
	}
	return err
}
