package checkout

import (
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// Attempt is one run of the checkout state machine over a cart snapshot.
type Attempt struct {
	ID        string
	SessionID string
	Status    domain.CheckoutStatus
	Cart      domain.Cart
	Customer  domain.CustomerInfo
	OrderID   string
	// FailedStep is the step that was running when the attempt failed.
	FailedStep domain.CheckoutStatus
	Reason     string
	StartedAt  time.Time
}

func (a *Attempt) advance(to domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

func (a *Attempt) fail(err error) {
	a.FailedStep = a.Status
	a.Reason = err.Error()
	a.Status = domain.CheckoutStatusFailed
}

// Partial reports whether the attempt failed after its order was created.
func (a *Attempt) Partial() bool {
	return a.Status == domain.CheckoutStatusFailed && a.OrderID != ""
}

// PartialCompletionError means the order was stored but a later step failed.
// The order stays pending and needs manual reconciliation.
type PartialCompletionError struct {
	OrderID string
	Step    domain.CheckoutStatus
	Err     error
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("order %s placed, confirmation pending: %s: %v", e.OrderID, e.Step, e.Err)
}

func (e *PartialCompletionError) Unwrap() error {
	return e.Err
}
