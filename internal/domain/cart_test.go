package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCartTotal(t *testing.T) {
	cart := &Cart{
		Status: CartStatusActive,
		Items: []CartItem{
			{UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2},
			{UnitPrice: decimal.RequireFromString("0.99"), Quantity: 3},
		},
	}

	assert.True(t, cart.Total().Equal(decimal.RequireFromString("27.97")))
	assert.Equal(t, "25.00", cart.Items[0].Subtotal().StringFixed(2))
	assert.True(t, cart.IsActive())
}

func TestCartTotal_Empty(t *testing.T) {
	cart := &Cart{Status: CartStatusCheckedOut}

	assert.True(t, cart.Total().IsZero())
	assert.False(t, cart.IsActive())
}

func TestCartStatus_Valid(t *testing.T) {
	assert.True(t, CartStatusActive.Valid())
	assert.True(t, CartStatusCheckedOut.Valid())
	assert.True(t, CartStatusAbandoned.Valid())
	assert.False(t, CartStatus("open").Valid())
}
