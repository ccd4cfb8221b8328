package controllers

import (
	"github.com/merchshop/storefront-backend/pkg/types"
)

type cartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Size      string `json:"size" validate:"max=32"`
	Color     string `json:"color" validate:"max=32"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

func (r cartItemRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

type cartQuantityRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Size      string `json:"size" validate:"max=32"`
	Color     string `json:"color" validate:"max=32"`
	Quantity  *int   `json:"quantity" validate:"required,min=0,max=99"`
}

type couponApplyRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// The checkout gate reports every address problem at once, so the address is
// not validated here.
type orderSubmitRequest struct {
	Address       *types.Address `json:"address" validate:"-"`
	PaymentMethod string         `json:"payment_method" validate:"required,max=16"`
	UTR           string         `json:"utr" validate:"max=32"`
}
