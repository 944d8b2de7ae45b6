package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/db"
	"github.com/heuristic-logix/backoffice/pkg/enums"
)

type countingWaker struct {
	notified int
}

func (w *countingWaker) Notify() {
	w.notified++
}

func setupWriterTest(t *testing.T) (*Writer, *Repository, *countingWaker) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

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
	require.NoError(t, client.DB().Exec(schema).Error)
	require.NoError(t, client.DB().Exec("DELETE FROM outbox_events").Error)

	repo := NewRepository(client.DB())
	waker := &countingWaker{}
	writer, err := NewWriter(client, repo, waker, nil)
	require.NoError(t, err)
	return writer, repo, waker
}

func TestWriterTransactCommitsAndNotifies(t *testing.T) {
	writer, repo, waker := setupWriterTest(t)
	ctx := context.Background()

	err := writer.Transact(ctx, func(tx *gorm.DB) error {
		_, addErr := writer.AddEvent(ctx, tx, EventParams{
			EventType:   enums.EventConduceCreated,
			Topic:       "logistics.conduces.v1",
			AggregateID: "conduce-42",
			Payload:     json.RawMessage(`{"conduce_number":"CND-042"}`),
		})
		return addErr
	})
	require.NoError(t, err)
	assert.Equal(t, 1, waker.notified)

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventConduceCreated, rows[0].EventType)
	assert.Equal(t, "conduce-42", rows[0].AggregateID)
	assert.Equal(t, enums.OutboxPending, rows[0].Status)
}

func TestWriterTransactRollsBackWithoutNotify(t *testing.T) {
	writer, repo, waker := setupWriterTest(t)
	ctx := context.Background()

	boom := errors.New("business rule rejected")
	err := writer.Transact(ctx, func(tx *gorm.DB) error {
		if _, addErr := writer.AddEvent(ctx, tx, EventParams{
			EventType:   enums.EventConduceCreated,
			Topic:       "logistics.conduces.v1",
			AggregateID: "conduce-43",
			Payload:     json.RawMessage(`{}`),
		}); addErr != nil {
			return addErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, waker.notified)

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriterAddEventWithoutTransaction(t *testing.T) {
	writer, repo, waker := setupWriterTest(t)
	ctx := context.Background()

	// No open transaction: the insert is its own atomic unit on the base
	// connection. No commit means no notify either.
	event, err := writer.AddEvent(ctx, nil, EventParams{
		EventType:   enums.EventConduceCreated,
		Topic:       "logistics.conduces.v1",
		AggregateID: "conduce-45",
		Payload:     json.RawMessage(`{"conduce_number":"CND-045"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, 0, waker.notified)

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "conduce-45", rows[0].AggregateID)
	assert.Equal(t, enums.OutboxPending, rows[0].Status)
	assert.Equal(t, 0, rows[0].AttemptCount)
}

func TestWriterAddEventValidates(t *testing.T) {
	writer, _, waker := setupWriterTest(t)
	ctx := context.Background()

	err := writer.Transact(ctx, func(tx *gorm.DB) error {
		_, addErr := writer.AddEvent(ctx, tx, EventParams{
			Topic:       "logistics.conduces.v1",
			AggregateID: "conduce-44",
			Payload:     json.RawMessage(`{}`),
		})
		return addErr
	})
	require.Error(t, err)
	assert.Equal(t, 0, waker.notified)
}

func TestWriterMultipleEventsOneTransaction(t *testing.T) {
	writer, repo, waker := setupWriterTest(t)
	ctx := context.Background()

	err := writer.Transact(ctx, func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if _, addErr := writer.AddEvent(ctx, tx, EventParams{
				EventType:   enums.EventTruckAssigned,
				Topic:       "logistics.trucks.v1",
				AggregateID: fmt.Sprintf("truck-%d", i),
				Payload:     json.RawMessage(`{}`),
			}); addErr != nil {
				return addErr
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, waker.notified)

	rows, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
