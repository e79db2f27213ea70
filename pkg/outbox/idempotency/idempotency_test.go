package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "od:idempotency:" + scope + ":" + id
}

func TestGuardClaimsOncePerConsumer(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	claimed, err := guard.Claim(ctx, "order-inbox", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = guard.Claim(ctx, "order-inbox", eventID)
	require.NoError(t, err)
	assert.False(t, claimed, "redelivery must not be handled twice")

	claimed, err = guard.Claim(ctx, "other-consumer", eventID)
	require.NoError(t, err)
	assert.True(t, claimed, "consumers dedup independently")

	key := "od:idempotency:evt:processed:order-inbox:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.ttls[key])
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = guard.Claim(ctx, "order-inbox", eventID)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, "order-inbox", eventID))

	claimed, err := guard.Claim(ctx, "order-inbox", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestGuardErrors(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.Claim(ctx, "", uuid.New())
	assert.Error(t, err)
	_, err = guard.Claim(ctx, "order-inbox", uuid.Nil)
	assert.Error(t, err)

	store.err = errors.New("redis down")
	_, err = guard.Claim(ctx, "order-inbox", uuid.New())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "redis down"))

	_, err = NewGuard(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewGuard(store, -time.Second)
	assert.Error(t, err)
}
