package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
)

// ErrStatusConflict is returned when a status update targets a record that is
// no longer in the state the transition requires. Status moves forward only:
// pending may become published or failed, nothing moves back.
var ErrStatusConflict = errors.New("outbox event is not pending")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends the event inside the caller's transaction. The row always
// starts pending with a zero attempt count regardless of what the caller set.
// A nil tx falls back to the base connection, making the insert its own
// atomic unit: the event is then durable even if the business write it
// describes never happened. Callers with an open transaction must pass it.
func (r *Repository) Insert(tx *gorm.DB, event *models.OutboxEvent) error {
	if tx == nil {
		tx = r.db
	}
	if event == nil {
		return errors.New("event required")
	}
	if event.EventType == "" {
		return errors.New("event type is required")
	}
	if event.Topic == "" {
		return errors.New("topic is required")
	}
	if event.AggregateID == "" {
		return errors.New("aggregate id is required")
	}
	if len(event.Payload) == 0 {
		return errors.New("payload is required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = enums.OutboxPending
	event.AttemptCount = 0
	event.PublishedAt = nil
	event.LastAttemptAt = nil
	event.LastError = nil
	return tx.Create(event).Error
}

// FetchPending returns the oldest pending events, capped at limit. Ordering is
// created_at then id so ties resolve deterministically.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OutboxPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkAttempt records that a delivery attempt is about to happen. It must be
// persisted before the publish call so a crash mid-delivery still counts the
// attempt. Only pending records accept attempts.
func (r *Repository) MarkAttempt(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, enums.OutboxPending).
		Updates(map[string]any{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_attempt_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark attempt %s: %w", id, ErrStatusConflict)
	}
	return nil
}

// MarkPublished moves a pending record to published and stamps published_at.
// Re-marking an already published record is a no-op; any other state is a
// conflict.
func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, enums.OutboxPending).
		Updates(map[string]any{
			"status":       enums.OutboxPublished,
			"published_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == enums.OutboxPublished {
		return nil
	}
	return fmt.Errorf("mark published %s: %w", id, ErrStatusConflict)
}

// RecordError stores the latest delivery error while keeping the record
// pending for a later retry.
func (r *Repository) RecordError(ctx context.Context, id uuid.UUID, cause error) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, enums.OutboxPending).
		Update("last_error", errorMessage(cause))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record error %s: %w", id, ErrStatusConflict)
	}
	return nil
}

// MarkFailed moves a pending record to the terminal failed state, keeping the
// final error for operators.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, enums.OutboxPending).
		Updates(map[string]any{
			"status":     enums.OutboxFailed,
			"last_error": errorMessage(cause),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark failed %s: %w", id, ErrStatusConflict)
	}
	return nil
}

// GetByID loads a single event record.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	var row models.OutboxEvent
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByStatus pages through events in a given state, newest first. Used by
// the operator inspection endpoints.
func (r *Repository) ListByStatus(ctx context.Context, status enums.OutboxStatus, limit, offset int) ([]models.OutboxEvent, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid outbox status %q", status)
	}
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// CountByStatus returns per-status totals for the stats endpoint and the
// pending depth gauge.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.OutboxStatus]int64, error) {
	type statusCount struct {
		Status enums.OutboxStatus
		Total  int64
	}
	var counts []statusCount
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	result := make(map[enums.OutboxStatus]int64, len(counts))
	for _, c := range counts {
		result[c.Status] = c.Total
	}
	return result, nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
