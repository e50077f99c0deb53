package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/store"
	"github.com/google/uuid"
)

// Notifier sends the order confirmation messages.
type Notifier interface {
	OrderPlaced(ctx context.Context, orderID string, order domain.Order) error
}

// Recorder keeps a durable trail of attempts. Recording is best-effort.
type Recorder interface {
	Started(ctx context.Context, a Attempt) error
	Advanced(ctx context.Context, a Attempt) error
	Finished(ctx context.Context, a Attempt) error
}

// CartOwner is the session cart the checkout reads and empties. The
// checkout lock is held from the snapshot until the ordered lines are gone.
type CartOwner interface {
	Snapshot() domain.Cart
	TryLockCheckout() bool
	UnlockCheckout()
	RemoveOrdered(ctx context.Context, ordered domain.Cart)
}

type Orchestrator struct {
	products store.ProductStore
	orders   store.OrderStore
	notifier Notifier
	recorder Recorder
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func NewOrchestrator(products store.ProductStore, orders store.OrderStore, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		products: products,
		orders:   orders,
		notifier: notifier,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Begin starts an attempt over the cart and waits for customer info.
// An empty cart is rejected without any state change.
func (o *Orchestrator) Begin(sessionID string, cart domain.Cart) (*Attempt, error) {
	if cart.IsEmpty() {
		metrics.Checkouts.WithLabelValues("empty").Inc()
		return nil, domain.ErrEmptyCart
	}

	a := &Attempt{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    domain.CheckoutStatusIdle,
		Cart:      cart.Clone(),
		StartedAt: time.Now().UTC(),
	}
	if err := a.advance(domain.CheckoutStatusCollectingCustomerInfo); err != nil {
		return nil, err
	}
	return a, nil
}

// Submit runs the remaining steps in order: create the order, decrement
// stock line by line, send notifications. Steps already applied are never
// rolled back; failures after the order exists return *PartialCompletionError.
// Once started the sequence is not cancelled by the caller's context.
func (o *Orchestrator) Submit(ctx context.Context, a *Attempt, info domain.CustomerInfo) error {
	if a.Status != domain.CheckoutStatusCollectingCustomerInfo {
		return fmt.Errorf("%w: submit in %s", domain.ErrIllegalTransition, a.Status)
	}

	info = info.Normalize()
	if err := info.Validate(); err != nil {
		a.fail(err)
		metrics.Checkouts.WithLabelValues("cancelled").Inc()
		logger.Ctx(ctx).Info().Str("attempt_id", a.ID).Msg("checkout cancelled")
		return err
	}
	a.Customer = info

	ctx = context.WithoutCancel(ctx)
	log := logger.Ctx(ctx).With().Str("attempt_id", a.ID).Str("session", a.SessionID).Logger()

	// CREATING_ORDER
	if err := a.advance(domain.CheckoutStatusCreatingOrder); err != nil {
		return err
	}
	o.record(ctx, o.recorder.Started, a)

	order := domain.NewOrder(a.Cart, info)
	orderID, err := o.orders.CreateOrder(ctx, order)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
		log.Error().Err(err).Msg("order creation failed")
		return o.finish(ctx, a, err, "failed")
	}
	a.OrderID = orderID
	log = log.With().Str("order_id", orderID).Logger()
	log.Info().Str("total", order.Total.StringFixed(2)).Msg("order created")

	// DECREMENTING_STOCK
	if err := a.advance(domain.CheckoutStatusDecrementingStock); err != nil {
		return err
	}
	o.record(ctx, o.recorder.Advanced, a)

	if err := o.decrementStock(ctx, a.Cart); err != nil {
		log.Error().Err(err).Msg("stock decrement failed, order left pending")
		return o.finish(ctx, a, o.partial(a, err), "partial")
	}

	// SENDING_NOTIFICATIONS
	if err := a.advance(domain.CheckoutStatusSendingNotifications); err != nil {
		return err
	}
	o.record(ctx, o.recorder.Advanced, a)

	if err := o.notifier.OrderPlaced(ctx, orderID, order); err != nil {
		log.Error().Err(err).Msg("notifications failed, order left pending")
		return o.finish(ctx, a, o.partial(a, err), "partial")
	}

	// DONE
	if err := a.advance(domain.CheckoutStatusDone); err != nil {
		return err
	}
	o.record(ctx, o.recorder.Finished, a)
	metrics.Checkouts.WithLabelValues("done").Inc()
	log.Info().Msg("checkout done")
	return nil
}

// Checkout runs a full attempt over the owner's cart and removes the ordered
// lines on success. A second checkout on the same cart is rejected with
// ErrCheckoutInProgress until the first one returns.
func (o *Orchestrator) Checkout(ctx context.Context, sessionID string, owner CartOwner, info domain.CustomerInfo) (*Attempt, error) {
	if !owner.TryLockCheckout() {
		metrics.Checkouts.WithLabelValues("in_progress").Inc()
		return nil, domain.ErrCheckoutInProgress
	}
	defer owner.UnlockCheckout()

	a, err := o.Begin(sessionID, owner.Snapshot())
	if err != nil {
		return nil, err
	}
	if err := o.Submit(ctx, a, info); err != nil {
		return a, err
	}
	owner.RemoveOrdered(context.WithoutCancel(ctx), a.Cart)
	return a, nil
}

// decrementStock writes current-minus-ordered for each line, in cart order,
// stopping at the first failure.
func (o *Orchestrator) decrementStock(ctx context.Context, cart domain.Cart) error {
	for _, line := range cart.Lines {
		product, err := o.products.GetProduct(ctx, line.ID)
		if err != nil {
			return fmt.Errorf("%w: product %s: %w", domain.ErrStockUpdateFailed, line.ID, err)
		}
		if err := o.products.UpdateQuantity(ctx, line.ID, product.Quantity-line.Quantity); err != nil {
			return fmt.Errorf("%w: product %s: %w", domain.ErrStockUpdateFailed, line.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) partial(a *Attempt, err error) error {
	return &PartialCompletionError{OrderID: a.OrderID, Step: a.Status, Err: err}
}

func (o *Orchestrator) finish(ctx context.Context, a *Attempt, err error, outcome string) error {
	a.fail(err)
	o.record(ctx, o.recorder.Finished, a)
	metrics.Checkouts.WithLabelValues(outcome).Inc()
	return err
}

func (o *Orchestrator) record(ctx context.Context, fn func(context.Context, Attempt) error, a *Attempt) {
	if err := fn(ctx, *a); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("attempt_id", a.ID).Str("status", a.Status.String()).Msg("checkout journal write failed")
	}
}

// IsPartial reports whether err means the order was placed but not confirmed.
func IsPartial(err error) (*PartialCompletionError, bool) {
	var p *PartialCompletionError
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

type noopRecorder struct{}

func (noopRecorder) Started(context.Context, Attempt) error  { return nil }
func (noopRecorder) Advanced(context.Context, Attempt) error { return nil }
func (noopRecorder) Finished(context.Context, Attempt) error { return nil }
