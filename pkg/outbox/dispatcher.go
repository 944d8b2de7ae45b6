package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/metrics"
)

const (
	defaultBatchSize        = 100
	defaultFallbackInterval = 30 * time.Second
	defaultMaxAttempts      = 3
	defaultPublishTimeout   = 15 * time.Second
	cycleErrorSleep         = time.Second
)

type dispatcherRepository interface {
	FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkAttempt(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordError(ctx context.Context, id uuid.UUID, cause error) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

type dispatcherNotifier interface {
	Wait(ctx context.Context, timeout time.Duration) WaitOutcome
}

// DispatcherParams wires the dispatcher's collaborators. Zero values for the
// tuning knobs fall back to the defaults above.
type DispatcherParams struct {
	Logger           *logger.Logger
	Repository       dispatcherRepository
	Sink             Sink
	Notifier         dispatcherNotifier
	Metrics          *metrics.OutboxMetrics
	BatchSize        int
	FallbackInterval time.Duration
	MaxAttempts      int
	PublishTimeout   time.Duration
}

// Dispatcher is the single consumer of the outbox table. It wakes on writer
// signals or the fallback interval, drains pending events oldest first, and
// owns every status transition after insert. Run exactly one per deployment;
// the fetch does not lock rows against a second dispatcher.
type Dispatcher struct {
	logg           *logger.Logger
	repo           dispatcherRepository
	sink           Sink
	notifier       dispatcherNotifier
	metrics        *metrics.OutboxMetrics
	batchSize      int
	fallback       time.Duration
	maxAttempts    int
	publishTimeout time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Sink == nil {
		return nil, errors.New("delivery sink is required")
	}
	if params.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	fallback := params.FallbackInterval
	if fallback <= 0 {
		fallback = defaultFallbackInterval
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	publishTimeout := params.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Dispatcher{
		logg:           params.Logger,
		repo:           params.Repository,
		sink:           params.Sink,
		notifier:       params.Notifier,
		metrics:        params.Metrics,
		batchSize:      batch,
		fallback:       fallback,
		maxAttempts:    maxAttempts,
		publishTimeout: publishTimeout,
	}, nil
}

// Run blocks until the notifier closes or ctx is canceled. Each wake drains
// the table in full batches before going back to sleep, so coalesced signals
// never strand work.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d.logg.Info(ctx, "outbox dispatcher started")

	for {
		outcome := d.notifier.Wait(ctx, d.fallback)
		if outcome == WaitClosed {
			d.logg.Info(ctx, "outbox dispatcher stopping")
			return ctx.Err()
		}
		d.metrics.IncWakeup(outcome.String())

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			start := time.Now()
			processed, err := d.runCycle(ctx)
			d.metrics.ObserveCycle(time.Since(start))
			if err != nil {
				d.metrics.IncCycleError()
				d.logg.Error(ctx, "outbox dispatch cycle error", err)
				// Back to waiting after the short sleep. Hammering a broken
				// store every second buys nothing; the fallback interval
				// retries soon enough.
				if sleepErr := d.sleep(ctx, cycleErrorSleep); sleepErr != nil {
					return sleepErr
				}
				break
			}
			if processed < d.batchSize {
				break
			}
		}
	}
}

// runCycle fetches one batch of pending events and works through it in order.
// Broker failures are handled per record; persistence failures while marking
// are collected and surfaced as a cycle error without skipping the remaining
// records.
func (d *Dispatcher) runCycle(ctx context.Context) (int, error) {
	events, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}
	d.metrics.SetPendingDepth(len(events))
	if len(events) == 0 {
		return 0, nil
	}

	var cycleErr error
	for _, event := range events {
		if err := d.processEvent(ctx, event); err != nil {
			cycleErr = multierr.Append(cycleErr, err)
		}
	}
	return len(events), cycleErr
}

func (d *Dispatcher) processEvent(ctx context.Context, event models.OutboxEvent) error {
	// The attempt is persisted before the publish so a crash between the two
	// still counts it. Under-counting would let a poison event retry forever.
	if err := d.repo.MarkAttempt(ctx, event.ID, time.Now().UTC()); err != nil {
		return err
	}
	attempt := event.AttemptCount + 1

	fields := d.eventFields(event)
	fields["attempt_count"] = attempt

	pubErr := d.publish(ctx, event)
	if pubErr == nil {
		if err := d.repo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		d.metrics.IncPublished()
		d.logg.Info(d.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	d.metrics.IncAttemptFailed()
	logCtx := d.logg.WithField(d.logg.WithFields(ctx, fields), "error", pubErr.Error())

	if attempt >= d.maxAttempts {
		if err := d.repo.MarkFailed(ctx, event.ID, pubErr); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		d.metrics.IncTerminal()
		d.logg.Warn(logCtx, "outbox event exhausted attempts, will not be retried")
		return nil
	}

	if err := d.repo.RecordError(ctx, event.ID, pubErr); err != nil {
		return fmt.Errorf("record error %s: %w", event.ID, err)
	}
	d.logg.Warn(logCtx, "outbox publish failed")
	return nil
}

// publish sends one event to the sink. A panicking sink is contained here and
// reported as an ordinary delivery failure so one poison event cannot take
// down the loop.
func (d *Dispatcher) publish(ctx context.Context, event models.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	headers := map[string]string{
		"event-id":   event.ID.String(),
		"event-type": string(event.EventType),
	}
	if event.CorrelationID != nil {
		headers["correlation-id"] = *event.CorrelationID
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	receipt, err := d.sink.Publish(publishCtx, Message{
		Topic:   event.Topic,
		Key:     event.AggregateID,
		Value:   event.Payload,
		Headers: headers,
	})
	if err != nil {
		return err
	}
	if !receipt.Persisted {
		return errors.New("broker did not confirm persistence")
	}
	return nil
}

func (d *Dispatcher) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"event_id":     event.ID.String(),
		"event_type":   event.EventType,
		"topic":        event.Topic,
		"aggregate_id": event.AggregateID,
	}
	if event.CorrelationID != nil {
		fields["correlation_id"] = *event.CorrelationID
	}
	return fields
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
