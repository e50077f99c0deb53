package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/journal"
	"github.com/fjod/storefront/internal/logger"
	"github.com/segmentio/kafka-go"
)

const abandonedReason = "checkout abandoned mid-sequence"

type Repo interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*journal.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckAttempts(ctx context.Context, olderThan time.Duration) ([]*journal.CheckoutAttempt, error)
	Finish(ctx context.Context, o journal.Outcome) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller publishes journal outbox events to Kafka and fails attempts
// that stopped before reaching a terminal status.
type OutboxPoller struct {
	stuckAfter   time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         Repo
	writer       messageWriter
}

func NewOutboxPoller(repo Repo, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		stuckAfter:   10 * time.Minute,
		eventTick:    time.Second,
		recoveryTick: time.Minute,
		repo:         repo,
		writer:       w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckAttempts(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			continue
		}
	}
}

// recoverStuckAttempts fails attempts left in a non-terminal status, for
// example by a restart mid-checkout. Attempts with a stored order are flagged
// for reconciliation.
func (p *OutboxPoller) recoverStuckAttempts(ctx context.Context) {
	attempts, err := p.repo.GetStuckAttempts(ctx, p.stuckAfter)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to get stuck checkout attempts")
		return
	}

	for _, a := range attempts {
		outcome := journal.Outcome{
			AttemptID:     a.ID,
			Status:        domain.CheckoutStatusFailed,
			FailedStep:    a.Status.String(),
			FailureReason: abandonedReason,
		}

		if a.OrderID != "" {
			event, err := reconciliationEvent(a, time.Now().UTC())
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("attempt_id", a.ID).Msg("failed to build reconciliation event")
				continue
			}
			outcome.OrderID = a.OrderID
			outcome.Event = event
		}

		if err := p.repo.Finish(ctx, outcome); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("attempt_id", a.ID).Msg("failed to recover stuck attempt")
			continue
		}
		logger.Ctx(ctx).Info().Str("attempt_id", a.ID).Str("order_id", a.OrderID).Msg("stuck attempt recovered")
	}
}

func reconciliationEvent(a *journal.CheckoutAttempt, now time.Time) (*journal.OutboxEvent, error) {
	var items json.RawMessage = a.CartSnapshot
	if !json.Valid(items) {
		items = json.RawMessage("null")
	}
	payload := map[string]interface{}{
		"order_id":       a.OrderID,
		"attempt_id":     a.ID,
		"session_id":     a.SessionID,
		"customer_email": a.CustomerEmail,
		"total":          a.Total.StringFixed(2),
		"items":          items,
		"failed_step":    a.Status.String(),
		"reason":         abandonedReason,
		"occurred_at":    now,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &journal.OutboxEvent{
		AggregateID: a.OrderID,
		EventType:   journal.EventReconciliationRequired,
		Payload:     data,
	}, nil
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *journal.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events in order
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
