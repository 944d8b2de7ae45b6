package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/db/models"
	"github.com/heuristic-logix/backoffice/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  topic TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  correlation_id TEXT,
  metadata TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  attempt_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  published_at DATETIME,
  last_attempt_at DATETIME,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

func insertTestEvent(t *testing.T, repo *Repository, db *gorm.DB, createdAt time.Time) models.OutboxEvent {
	t.Helper()

	event := models.OutboxEvent{
		EventType:   enums.EventConduceCreated,
		Topic:       "logistics.conduces.v1",
		AggregateID: uuid.NewString(),
		Payload:     json.RawMessage(`{"conduce_number":"CND-001"}`),
		CreatedAt:   createdAt,
	}
	tx := db.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, repo.Insert(tx, &event))
	require.NoError(t, tx.Commit().Error)
	return event
}

func TestRepositoryInsertDefaults(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	correlation := "req-123"
	event := models.OutboxEvent{
		EventType:     enums.EventConduceDispatched,
		Topic:         "logistics.conduces.v1",
		AggregateID:   uuid.NewString(),
		Payload:       json.RawMessage(`{"truck_plate":"A123456"}`),
		CorrelationID: &correlation,
		Status:        enums.OutboxPublished,
		AttemptCount:  7,
	}
	tx := db.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, repo.Insert(tx, &event))
	require.NoError(t, tx.Commit().Error)

	require.NotEqual(t, uuid.Nil, event.ID)

	stored, err := repo.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxPending, stored.Status)
	assert.Equal(t, 0, stored.AttemptCount)
	assert.Nil(t, stored.PublishedAt)
	assert.Nil(t, stored.LastAttemptAt)
	assert.Nil(t, stored.LastError)
	require.NotNil(t, stored.CorrelationID)
	assert.Equal(t, correlation, *stored.CorrelationID)
}

func TestRepositoryInsertValidation(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	base := models.OutboxEvent{
		EventType:   enums.EventConduceCreated,
		Topic:       "logistics.conduces.v1",
		AggregateID: uuid.NewString(),
		Payload:     json.RawMessage(`{}`),
	}

	require.Error(t, repo.Insert(db, nil))

	missingType := base
	missingType.EventType = ""
	require.Error(t, repo.Insert(db, &missingType))

	missingTopic := base
	missingTopic.Topic = ""
	require.Error(t, repo.Insert(db, &missingTopic))

	missingAggregate := base
	missingAggregate.AggregateID = ""
	require.Error(t, repo.Insert(db, &missingAggregate))

	missingPayload := base
	missingPayload.Payload = nil
	require.Error(t, repo.Insert(db, &missingPayload))
}

func TestRepositoryFetchPendingOrderAndLimit(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	third := insertTestEvent(t, repo, db, base.Add(2*time.Minute))
	first := insertTestEvent(t, repo, db, base)
	second := insertTestEvent(t, repo, db, base.Add(time.Minute))

	published := insertTestEvent(t, repo, db, base.Add(-time.Hour))
	require.NoError(t, repo.MarkPublished(ctx, published.ID, time.Now().UTC()))

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
	assert.Equal(t, third.ID, rows[2].ID)

	limited, err := repo.FetchPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, first.ID, limited[0].ID)
	assert.Equal(t, second.ID, limited[1].ID)
}

func TestRepositoryMarkAttempt(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := insertTestEvent(t, repo, db, time.Now().UTC())

	at := time.Now().UTC()
	require.NoError(t, repo.MarkAttempt(ctx, event.ID, at))
	require.NoError(t, repo.MarkAttempt(ctx, event.ID, at.Add(time.Second)))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastAttemptAt)
	assert.Equal(t, enums.OutboxPending, stored.Status)

	require.NoError(t, repo.MarkPublished(ctx, event.ID, time.Now().UTC()))
	err = repo.MarkAttempt(ctx, event.ID, time.Now().UTC())
	require.ErrorIs(t, err, ErrStatusConflict)
}

func TestRepositoryMarkPublished(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := insertTestEvent(t, repo, db, time.Now().UTC())

	publishedAt := time.Now().UTC()
	require.NoError(t, repo.MarkPublished(ctx, event.ID, publishedAt))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)

	// Re-marking a published record is a no-op, not an error.
	require.NoError(t, repo.MarkPublished(ctx, event.ID, time.Now().UTC()))

	again, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	assert.Equal(t, stored.PublishedAt.Unix(), again.PublishedAt.Unix())
}

func TestRepositoryMarkPublishedRejectsFailedRecord(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := insertTestEvent(t, repo, db, time.Now().UTC())
	require.NoError(t, repo.MarkFailed(ctx, event.ID, errors.New("broker unreachable")))

	err := repo.MarkPublished(ctx, event.ID, time.Now().UTC())
	require.ErrorIs(t, err, ErrStatusConflict)

	stored, getErr := repo.GetByID(ctx, event.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.OutboxFailed, stored.Status)
	assert.Nil(t, stored.PublishedAt)
}

func TestRepositoryRecordErrorKeepsPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := insertTestEvent(t, repo, db, time.Now().UTC())

	require.NoError(t, repo.RecordError(ctx, event.ID, errors.New("timeout waiting for ack")))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxPending, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "timeout waiting for ack", *stored.LastError)
}

func TestRepositoryMarkFailedIsTerminal(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	event := insertTestEvent(t, repo, db, time.Now().UTC())

	require.NoError(t, repo.MarkFailed(ctx, event.ID, errors.New("max publish attempts reached")))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxFailed, stored.Status)
	require.NotNil(t, stored.LastError)

	require.ErrorIs(t, repo.MarkFailed(ctx, event.ID, errors.New("again")), ErrStatusConflict)
	require.ErrorIs(t, repo.RecordError(ctx, event.ID, errors.New("again")), ErrStatusConflict)

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryListByStatusAndCounts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	insertTestEvent(t, repo, db, base)
	failedOld := insertTestEvent(t, repo, db, base.Add(time.Minute))
	failedNew := insertTestEvent(t, repo, db, base.Add(2*time.Minute))

	require.NoError(t, repo.MarkFailed(ctx, failedOld.ID, errors.New("boom")))
	require.NoError(t, repo.MarkFailed(ctx, failedNew.ID, errors.New("boom")))

	failed, err := repo.ListByStatus(ctx, enums.OutboxFailed, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, failedNew.ID, failed[0].ID)
	assert.Equal(t, failedOld.ID, failed[1].ID)

	_, err = repo.ListByStatus(ctx, enums.OutboxStatus("bogus"), 10, 0)
	require.Error(t, err)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[enums.OutboxPending])
	assert.Equal(t, int64(2), counts[enums.OutboxFailed])
}
