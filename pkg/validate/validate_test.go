package validate_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/ferremas/pkg/validate"
)

type registerInput struct {
	Username             string `json:"username"              validate:"required,alpha_dash,min=3,max=30"`
	Email                string `json:"email"                 validate:"required,email"`
	Password             string `json:"password"              validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"                  validate:"required,in=admin,seller,warehouse,accountant"`
	RUT                  string `json:"rut"                   validate:"nullable,rut"`
	Website              string `json:"website"               validate:"nullable,url"`
}

func validRegister() registerInput {
	return registerInput{
		Username:             "bodega_1",
		Email:                "bodega@ferremas.cl",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
		Role:                 "warehouse",
		RUT:                  "12.345.678-5",
	}
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(validRegister())
	assert.False(t, validate.HasErrors(errs), "%v", errs)
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(registerInput{})
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "role")
	assert.NotContains(t, errs, "rut")
	assert.NotContains(t, errs, "website")
}

func TestConfirmedMismatch(t *testing.T) {
	in := validRegister()
	in.PasswordConfirmation = "other"
	errs := validate.Struct(in)
	assert.Equal(t, "The password confirmation does not match.", errs["password"])
}

func TestInKeepsListTogether(t *testing.T) {
	in := validRegister()
	in.Role = "customer"
	errs := validate.Struct(in)
	assert.Equal(t, "The selected role is invalid.", errs["role"])
}

func TestRUT(t *testing.T) {
	assert.True(t, validate.ValidRUT("12.345.678-5"))
	assert.True(t, validate.ValidRUT("123456785"))
	assert.False(t, validate.ValidRUT("12.345.678-9"))
	assert.False(t, validate.ValidRUT("abc"))
}

type orderItem struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity"   validate:"gte=1"`
}

type orderInput struct {
	Items []orderItem `json:"items" validate:"required,min=1,dive"`
}

func TestDiveReportsElementPaths(t *testing.T) {
	errs := validate.Struct(orderInput{Items: []orderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 0, Quantity: 0},
	}})
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, "items.1.product_id")
	assert.Equal(t, "The items.1.quantity must be greater than or equal to 1.", errs["items.1.quantity"])

	errs = validate.Struct(orderInput{})
	assert.Contains(t, errs, "items")
}

func TestDecimalBounds(t *testing.T) {
	type priceInput struct {
		Price    decimal.Decimal `json:"price"    validate:"required,gt=0"`
		Currency string          `json:"currency" validate:"required,currency"`
	}
	errs := validate.Struct(priceInput{Price: decimal.RequireFromString("-1"), Currency: "clp"})
	assert.Contains(t, errs, "price")
	assert.Contains(t, errs, "currency")

	errs = validate.Struct(priceInput{Price: decimal.RequireFromString("19990.50"), Currency: "CLP"})
	assert.Empty(t, errs)
}

func TestPointerFields(t *testing.T) {
	type filter struct {
		BranchID *uint   `json:"branch_id" validate:"nullable,gte=1"`
		Note     *string `json:"note"      validate:"required,max=5"`
	}
	long := "too long"
	zero := uint(0)
	errs := validate.Struct(filter{BranchID: &zero, Note: &long})
	assert.Contains(t, errs, "branch_id")
	assert.Contains(t, errs, "note")

	errs = validate.Struct(filter{})
	assert.NotContains(t, errs, "branch_id")
	assert.Contains(t, errs, "note")
}

func TestDateAndBetween(t *testing.T) {
	type rangeInput struct {
		From string  `json:"from" validate:"required,date"`
		Rate float64 `json:"rate" validate:"between=0,100"`
	}
	errs := validate.Struct(rangeInput{From: "2024-13-40", Rate: 150})
	assert.Contains(t, errs, "from")
	assert.Equal(t, "The rate must be between 0 and 100.", errs["rate"])
}
