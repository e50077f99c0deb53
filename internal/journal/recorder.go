package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
)

// Store is the part of Repository the recorder writes to.
type Store interface {
	CreateAttempt(ctx context.Context, a *CheckoutAttempt) error
	UpdateStatus(ctx context.Context, id string, status domain.CheckoutStatus, orderID string) error
	Finish(ctx context.Context, o Outcome) error
}

// Recorder journals checkout attempts. Finished attempts that placed an
// order also enqueue an outbox event.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

var _ checkout.Recorder = (*Recorder)(nil)

func (r *Recorder) Started(ctx context.Context, a checkout.Attempt) error {
	snapshot, err := json.Marshal(a.Cart.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	return r.store.CreateAttempt(ctx, &CheckoutAttempt{
		ID:            a.ID,
		SessionID:     a.SessionID,
		OrderID:       a.OrderID,
		Status:        a.Status,
		CartSnapshot:  snapshot,
		Total:         a.Cart.Total(),
		CustomerEmail: a.Customer.Email,
	})
}

func (r *Recorder) Advanced(ctx context.Context, a checkout.Attempt) error {
	return r.store.UpdateStatus(ctx, a.ID, a.Status, a.OrderID)
}

func (r *Recorder) Finished(ctx context.Context, a checkout.Attempt) error {
	event, err := eventFor(a, time.Now().UTC())
	if err != nil {
		return err
	}
	outcome := Outcome{
		AttemptID:     a.ID,
		OrderID:       a.OrderID,
		Status:        a.Status,
		FailureReason: a.Reason,
		Event:         event,
	}
	if a.Status == domain.CheckoutStatusFailed {
		outcome.FailedStep = a.FailedStep.String()
	}
	return r.store.Finish(ctx, outcome)
}

type orderEvent struct {
	OrderID       string            `json:"order_id"`
	AttemptID     string            `json:"attempt_id"`
	SessionID     string            `json:"session_id"`
	CustomerEmail string            `json:"customer_email"`
	Total         string            `json:"total"`
	Items         []domain.CartLine `json:"items"`
	FailedStep    string            `json:"failed_step,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// eventFor returns nil for attempts that never stored an order.
func eventFor(a checkout.Attempt, now time.Time) (*OutboxEvent, error) {
	var eventType string
	switch {
	case a.Status == domain.CheckoutStatusDone:
		eventType = EventOrderPlaced
	case a.Partial():
		eventType = EventReconciliationRequired
	default:
		return nil, nil
	}

	payload := orderEvent{
		OrderID:       a.OrderID,
		AttemptID:     a.ID,
		SessionID:     a.SessionID,
		CustomerEmail: a.Customer.Email,
		Total:         a.Cart.Total().StringFixed(2),
		Items:         a.Cart.Lines,
		Reason:        a.Reason,
		OccurredAt:    now,
	}
	if a.Status == domain.CheckoutStatusFailed {
		payload.FailedStep = a.FailedStep.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &OutboxEvent{AggregateID: a.OrderID, EventType: eventType, Payload: data}, nil
}
