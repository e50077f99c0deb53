package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
)

type Order struct {
	ID            string          `json:"id,omitempty"`
	Items         []CartLine      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
	// CreatedAt is assigned by the document store; zero until persisted.
	CreatedAt time.Time `json:"createdAt"`
}

// NewOrder snapshots the cart into a pending order.
func NewOrder(cart Cart, customer CustomerInfo) Order {
	snapshot := cart.Clone()
	return Order{
		Items:         snapshot.Lines,
		Total:         snapshot.Total(),
		Status:        OrderStatusPending,
		CustomerEmail: customer.Email,
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
	}
}

type CustomerInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (c CustomerInfo) Normalize() CustomerInfo {
	return CustomerInfo{
		Email: strings.TrimSpace(c.Email),
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Validate rejects input without email or name. Phone is optional.
func (c CustomerInfo) Validate() error {
	n := c.Normalize()
	if n.Email == "" || n.Name == "" {
		return ErrCheckoutCancelled
	}
	return nil
}
