package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
	"github.com/heuristic-logix/backoffice/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type waker interface {
	Notify()
}

// EventParams describes one event to enqueue. Payload is opaque to the
// pipeline and is shipped to the broker byte for byte.
type EventParams struct {
	EventType     enums.OutboxEventType
	Topic         string
	AggregateID   string
	Payload       json.RawMessage
	CorrelationID *string
	Metadata      json.RawMessage
}

// Writer enqueues outbox events atomically with the business mutations that
// cause them. AddEvent rides the caller's transaction; Transact owns the
// transaction and wakes the dispatcher only after the commit lands.
type Writer struct {
	db       txRunner
	repo     *Repository
	notifier waker
	logg     *logger.Logger
}

func NewWriter(db txRunner, repo *Repository, notifier waker, logg *logger.Logger) (*Writer, error) {
	if db == nil {
		return nil, errors.New("database client is required")
	}
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	return &Writer{db: db, repo: repo, notifier: notifier, logg: logg}, nil
}

// AddEvent inserts a pending event inside tx. The row commits or rolls back
// with the caller's business writes, which is the whole point: the event
// exists if and only if the mutation it describes does. A nil tx inserts on
// the base connection instead, so the event becomes its own atomic unit with
// no tie to any business write. That is legal but loses the only guarantee
// this package exists to provide; prefer Transact.
func (w *Writer) AddEvent(ctx context.Context, tx *gorm.DB, params EventParams) (*models.OutboxEvent, error) {
	row := models.OutboxEvent{
		EventType:     params.EventType,
		Topic:         params.Topic,
		AggregateID:   params.AggregateID,
		Payload:       params.Payload,
		CorrelationID: params.CorrelationID,
		Metadata:      params.Metadata,
	}
	if err := w.repo.Insert(tx, &row); err != nil {
		return nil, err
	}
	if w.logg != nil {
		logCtx := w.logg.WithFields(ctx, map[string]any{
			"event_id":     row.ID.String(),
			"event_type":   row.EventType,
			"topic":        row.Topic,
			"aggregate_id": row.AggregateID,
		})
		w.logg.Info(logCtx, "outbox event queued")
	}
	return &row, nil
}

// Transact runs fn in a transaction and, only when the commit succeeds, wakes
// the dispatcher. Notifying before commit would let the dispatcher race a
// transaction whose rows it cannot see yet.
func (w *Writer) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := w.db.WithTx(ctx, fn); err != nil {
		return err
	}
	if w.notifier != nil {
		w.notifier.Notify()
	}
	return nil
}
