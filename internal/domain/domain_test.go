package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id, price string, qty, max int) CartLine {
	return CartLine{ID: id, Name: id, Price: decimal.RequireFromString(price), Quantity: qty, MaxQuantity: max}
}

func TestCartTotal_ExactSum(t *testing.T) {
	cart := NewCart(
		line("p1", "0.10", 3, 5),
		line("p2", "0.20", 1, 1),
		line("p3", "19.99", 2, 4),
	)

	assert.Equal(t, "40.48", cart.Total().String())
	assert.Equal(t, "40.48", cart.Total().StringFixed(2))
	assert.Equal(t, 6, cart.Count())
}

func TestCartTotal_Empty(t *testing.T) {
	var cart Cart
	assert.True(t, cart.Total().IsZero())
	assert.Equal(t, "0.00", cart.Total().StringFixed(2))
	assert.Equal(t, 0, cart.Count())
	assert.True(t, cart.IsEmpty())
}

func TestCartFind(t *testing.T) {
	cart := NewCart(line("a", "1", 1, 1), line("b", "1", 1, 1))

	i, ok := cart.Find("b")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = cart.Find("c")
	assert.False(t, ok)
}

func TestCartClone_Independent(t *testing.T) {
	cart := NewCart(line("a", "1", 1, 2))
	clone := cart.Clone()
	clone.Lines[0].Quantity = 2

	assert.Equal(t, 1, cart.Lines[0].Quantity)
}

func TestCartValid(t *testing.T) {
	assert.True(t, NewCart(line("a", "1", 1, 1), line("b", "1", 2, 3)).Valid())
	assert.False(t, NewCart(line("a", "1", 0, 1)).Valid(), "zero quantity")
	assert.False(t, NewCart(line("a", "1", 3, 2)).Valid(), "over snapshot")
	assert.False(t, NewCart(line("a", "1", 1, 1), line("a", "1", 1, 1)).Valid(), "duplicate id")
}

func TestNewOrder_SnapshotsCart(t *testing.T) {
	cart := NewCart(line("p1", "10.00", 2, 2))
	order := NewOrder(cart, CustomerInfo{Email: "a@b.c", Name: "Ann", Phone: "123"})

	cart.Lines[0].Quantity = 1

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "Ann", order.CustomerName)
}

func TestCustomerInfoValidate(t *testing.T) {
	assert.NoError(t, CustomerInfo{Email: "a@b.c", Name: "Ann"}.Validate())
	assert.ErrorIs(t, CustomerInfo{Email: "  ", Name: "Ann"}.Validate(), ErrCheckoutCancelled)
	assert.ErrorIs(t, CustomerInfo{Email: "a@b.c"}.Validate(), ErrCheckoutCancelled)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutStatus
		want     bool
	}{
		{CheckoutStatusIdle, CheckoutStatusCollectingCustomerInfo, true},
		{CheckoutStatusCollectingCustomerInfo, CheckoutStatusCreatingOrder, true},
		{CheckoutStatusCreatingOrder, CheckoutStatusDecrementingStock, true},
		{CheckoutStatusDecrementingStock, CheckoutStatusSendingNotifications, true},
		{CheckoutStatusSendingNotifications, CheckoutStatusDone, true},
		{CheckoutStatusCreatingOrder, CheckoutStatusFailed, true},
		{CheckoutStatusIdle, CheckoutStatusCreatingOrder, false},
		{CheckoutStatusDone, CheckoutStatusFailed, false},
		{CheckoutStatusFailed, CheckoutStatusCreatingOrder, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}
