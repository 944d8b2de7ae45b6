package conduces

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/db"
	"github.com/heuristic-logix/backoffice/pkg/enums"
	pkgerrors "github.com/heuristic-logix/backoffice/pkg/errors"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
)

type serviceFixture struct {
	service    Service
	outboxRepo *outbox.Repository
	notifier   *outbox.Notifier
}

func setupServiceTest(t *testing.T) serviceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	conducesSchema := `
CREATE TABLE IF NOT EXISTS conduces (
  id TEXT PRIMARY KEY,
  conduce_number TEXT NOT NULL UNIQUE,
  client_name TEXT NOT NULL,
  delivery_address TEXT NOT NULL,
  material_description TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  unit TEXT NOT NULL,
  total_weight_kg NUMERIC NOT NULL,
  truck_plate TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxSchema := `
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
	require.NoError(t, client.DB().Exec(conducesSchema).Error)
	require.NoError(t, client.DB().Exec(outboxSchema).Error)
	require.NoError(t, client.DB().Exec("DELETE FROM conduces").Error)
	require.NoError(t, client.DB().Exec("DELETE FROM outbox_events").Error)

	outboxRepo := outbox.NewRepository(client.DB())
	notifier := outbox.NewNotifier()
	t.Cleanup(notifier.Close)

	writer, err := outbox.NewWriter(client, outboxRepo, notifier, nil)
	require.NoError(t, err)

	service, err := NewService(NewRepository(client.DB()), writer)
	require.NoError(t, err)

	return serviceFixture{service: service, outboxRepo: outboxRepo, notifier: notifier}
}

func validCreateInput(number string) CreateConduceInput {
	return CreateConduceInput{
		ConduceNumber:       number,
		ClientName:          "Constructora del Este",
		DeliveryAddress:     "Km 12 Autopista Duarte",
		MaterialDescription: "Arena lavada",
		Quantity:            decimal.NewFromInt(16),
		Unit:                "m3",
		TotalWeightKg:       decimal.NewFromInt(24000),
	}
}

func TestServiceCreateEmitsEventAtomically(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	conduce, err := fx.service.Create(ctx, validCreateInput("CND-100"))
	require.NoError(t, err)
	require.NotNil(t, conduce)
	assert.Equal(t, enums.ConduceDraft, conduce.Status)

	events, err := fx.outboxRepo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventConduceCreated, events[0].EventType)
	assert.Equal(t, "logistics.conduces.v1", events[0].Topic)
	assert.Equal(t, conduce.ID.String(), events[0].AggregateID)
	assert.Contains(t, string(events[0].Payload), "CND-100")

	// The committed transaction must wake the dispatcher.
	outcome := fx.notifier.Wait(ctx, 100*time.Millisecond)
	assert.Equal(t, outbox.WaitSignaled, outcome)
}

func TestServiceCreateRejectsDuplicateNumber(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	_, err := fx.service.Create(ctx, validCreateInput("CND-101"))
	require.NoError(t, err)
	fx.notifier.Wait(ctx, 100*time.Millisecond)

	_, err = fx.service.Create(ctx, validCreateInput("CND-101"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	// The failed transaction must not leave an event behind or wake anyone.
	events, err := fx.outboxRepo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, outbox.WaitTimedOut, fx.notifier.Wait(ctx, 50*time.Millisecond))
}

func TestServiceCreateValidation(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	input := validCreateInput("CND-102")
	input.Quantity = decimal.Zero
	_, err := fx.service.Create(ctx, input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	events, err := fx.outboxRepo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestServiceLifecycleEmitsEachTransition(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	conduce, err := fx.service.Create(ctx, validCreateInput("CND-103"))
	require.NoError(t, err)

	assigned, err := fx.service.AssignTruck(ctx, AssignTruckInput{ConduceID: conduce.ID, TruckPlate: "a123456"})
	require.NoError(t, err)
	require.NotNil(t, assigned.TruckPlate)
	assert.Equal(t, "A123456", *assigned.TruckPlate)
	assert.Equal(t, enums.ConduceAssigned, assigned.Status)

	dispatched, err := fx.service.Dispatch(ctx, conduce.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.ConduceDispatched, dispatched.Status)

	delivered, err := fx.service.Deliver(ctx, conduce.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.ConduceDelivered, delivered.Status)

	events, err := fx.outboxRepo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, enums.EventConduceCreated, events[0].EventType)
	assert.Equal(t, enums.EventTruckAssigned, events[1].EventType)
	assert.Equal(t, enums.EventConduceDispatched, events[2].EventType)
	assert.Equal(t, enums.EventConduceDelivered, events[3].EventType)
}

func TestServiceDispatchRequiresAssignedTruck(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	conduce, err := fx.service.Create(ctx, validCreateInput("CND-104"))
	require.NoError(t, err)

	_, err = fx.service.Dispatch(ctx, conduce.ID, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	// Rejected transition leaves only the creation event queued.
	events, fetchErr := fx.outboxRepo.FetchPending(ctx, 10)
	require.NoError(t, fetchErr)
	assert.Len(t, events, 1)

	current, getErr := fx.service.Get(ctx, conduce.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.ConduceDraft, current.Status)
}

func TestServiceGetAndList(t *testing.T) {
	fx := setupServiceTest(t)
	ctx := context.Background()

	first, err := fx.service.Create(ctx, validCreateInput("CND-105"))
	require.NoError(t, err)
	_, err = fx.service.Create(ctx, validCreateInput("CND-106"))
	require.NoError(t, err)

	found, err := fx.service.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "CND-105", found.ConduceNumber)

	_, err = fx.service.Get(ctx, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	all, err := fx.service.List(ctx, ConduceFilters{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	draft := enums.ConduceDraft
	filtered, err := fx.service.List(ctx, ConduceFilters{Status: &draft, Query: "CND-106"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "CND-106", filtered[0].ConduceNumber)
}
