package conduces

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/heuristic-logix/backoffice/pkg/enums"
	"github.com/heuristic-logix/backoffice/pkg/logger"
)

const consumerName = "conduces-telemetry"

// counterTTL keeps per-type tallies around long enough for the ops dashboard
// without growing Redis forever.
const counterTTL = 48 * time.Hour

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

// Consumer tallies conduce lifecycle events from the domain subscription.
// Delivery is at-least-once, so every message is deduped on its event id
// before the counter moves.
type Consumer struct {
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	counters     counterStore
	logg         *logger.Logger
}

// NewConsumer wires the telemetry consumer to the domain subscription.
func NewConsumer(subscription *pubsub.Subscriber, manager idempotencyChecker, counters counterStore, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("domain subscription is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		manager:      manager,
		counters:     counters,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process handles one delivery and reports whether it should be nacked for
// redelivery. Everything else, including poison messages, gets acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) (nack bool) {
	rawID := msg.Attributes["event-id"]
	eventType := enums.OutboxEventType(msg.Attributes["event-type"])

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   rawID,
		"event_type": eventType,
	})
	if corr := msg.Attributes["correlation-id"]; corr != "" {
		logCtx = c.logg.WithFields(logCtx, map[string]any{"correlation_id": corr})
	}

	// A message without a parseable event id can never be deduped. Ack it so
	// it does not poison the subscription.
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		c.logg.Warn(logCtx, "dropping message without event id")
		return false
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	if err := c.record(ctx, eventType); err != nil {
		c.logg.Error(logCtx, "failed to record telemetry", err)
		// Forget the mark so the redelivery gets a clean run.
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return true
	}

	c.logg.Info(logCtx, "conduce event recorded")
	return false
}

func (c *Consumer) record(ctx context.Context, eventType enums.OutboxEventType) error {
	if eventType == "" {
		return errors.New("event type missing")
	}
	key := c.counters.CounterKey(fmt.Sprintf("events:%s", eventType))
	_, err := c.counters.IncrWithTTL(ctx, key, counterTTL)
	return err
}
