package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fjod/storefront/internal/logger"
)

// LogRelay writes messages to the log instead of sending them.
type LogRelay struct{}

func (LogRelay) Send(ctx context.Context, templateID string, params Params) error {
	logger.Ctx(ctx).Info().
		Str("template", templateID).
		Str("to", params["to_email"]).
		Str("order_id", params["order_id"]).
		Str("order_total", params["order_total"]).
		Msg("notification")
	return nil
}

var ErrRelayUnavailable = errors.New("email relay unavailable")

// BreakerRelay stops calling a failing relay for a while after repeated errors.
type BreakerRelay struct {
	next Relay
	cb   *gobreaker.CircuitBreaker[any]
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewBreakerRelay(next Relay, s BreakerSettings) *BreakerRelay {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Ctx(context.Background()).Warn().
				Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("relay circuit breaker state changed")
		},
	})
	return &BreakerRelay{next: next, cb: cb}
}

func (b *BreakerRelay) Send(ctx context.Context, templateID string, params Params) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Send(ctx, templateID, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	}
	return err
}

func (b *BreakerRelay) State() gobreaker.State {
	return b.cb.State()
}
