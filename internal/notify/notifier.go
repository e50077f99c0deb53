package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
)

// Params is the flat key/value payload of a templated message.
type Params map[string]string

// Relay delivers one templated message through an external email service.
type Relay interface {
	Send(ctx context.Context, templateID string, params Params) error
}

type Templates struct {
	Customer string
	Admin    string
}

// Notifier sends the customer and admin messages for a placed order.
type Notifier struct {
	relay      Relay
	templates  Templates
	adminEmail string
}

func NewNotifier(relay Relay, templates Templates, adminEmail string) *Notifier {
	return &Notifier{relay: relay, templates: templates, adminEmail: adminEmail}
}

// OrderPlaced sends the customer message, then the admin message. Both are
// attempted; any failure is reported as ErrNotificationFailed.
func (n *Notifier) OrderPlaced(ctx context.Context, orderID string, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("%w: encode items: %w", domain.ErrNotificationFailed, err)
	}
	total := order.Total.StringFixed(2)

	customer := Params{
		"to_email":      order.CustomerEmail,
		"customer_name": order.CustomerName,
		"order_id":      orderID,
		"order_total":   total,
		"order_items":   string(items),
	}
	admin := Params{
		"to_email":       n.adminEmail,
		"customer_name":  order.CustomerName,
		"customer_email": order.CustomerEmail,
		"customer_phone": order.CustomerPhone,
		"order_id":       orderID,
		"order_total":    total,
		"order_items":    string(items),
	}

	var errs []error
	if err := n.relay.Send(ctx, n.templates.Customer, customer); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("customer notification failed")
		errs = append(errs, fmt.Errorf("customer message: %w", err))
	}
	if err := n.relay.Send(ctx, n.templates.Admin, admin); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("admin notification failed")
		errs = append(errs, fmt.Errorf("admin message: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, errors.Join(errs...))
	}
	return nil
}
