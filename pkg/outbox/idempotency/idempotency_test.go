package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	return s.data[key], nil
}

func (s *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = "1"
	s.ttls[key] = ttl
	return true, nil
}

func (s *fakeStore) IdempotencyKey(scope, id string) string {
	return "hlx:idempotency:" + scope + ":" + id
}

func (s *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Minute)
	require.Error(t, err)

	_, err = NewManager(newFakeStore(), -time.Minute)
	require.Error(t, err)
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(ctx, "expert-consumer", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "expert-consumer", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	// Another consumer keeps its own dedupe window.
	seen, err = manager.CheckAndMarkProcessed(ctx, "telemetry-consumer", eventID)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCheckAndMarkProcessedStoresTTL(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 30*time.Minute)
	require.NoError(t, err)

	eventID := uuid.New()
	_, err = manager.CheckAndMarkProcessed(context.Background(), "expert-consumer", eventID)
	require.NoError(t, err)

	key := store.IdempotencyKey("evt:processed:expert-consumer", eventID.String())
	assert.Equal(t, 30*time.Minute, store.ttls[key])
}

func TestDeleteAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(ctx, "expert-consumer", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "expert-consumer", eventID))

	seen, err := manager.CheckAndMarkProcessed(ctx, "expert-consumer", eventID)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestProcessedKeyValidation(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = manager.CheckAndMarkProcessed(ctx, "", uuid.New())
	require.Error(t, err)

	_, err = manager.CheckAndMarkProcessed(ctx, "expert-consumer", uuid.Nil)
	require.Error(t, err)
}
