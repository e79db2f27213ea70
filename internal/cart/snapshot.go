package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

// ErrNoSnapshot is returned by a SnapshotStore when the session has no saved cart.
var ErrNoSnapshot = errors.New("cart snapshot not found")

// Key identifies one browsing session's cart.
type Key struct {
	TenantID  uuid.UUID
	SessionID string
}

func (k Key) Validate() error {
	if k.TenantID == uuid.Nil {
		return errors.New("tenant id is required")
	}
	if k.SessionID == "" {
		return errors.New("session id is required")
	}
	return nil
}

// SnapshotStore persists the serialized cart of a session.
type SnapshotStore interface {
	Load(ctx context.Context, key Key) ([]byte, error)
	Save(ctx context.Context, key Key, data []byte) error
	Delete(ctx context.Context, key Key) error
}

type redisSnapshotStore struct {
	client redis.KeyValueStore
	ttl    time.Duration
}

// NewRedisSnapshotStore stores snapshots as JSON strings that expire after ttl of inactivity.
func NewRedisSnapshotStore(client redis.KeyValueStore, ttl time.Duration) (SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisSnapshotStore{client: client, ttl: ttl}, nil
}

func (s *redisSnapshotStore) Load(ctx context.Context, key Key) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	return []byte(raw), nil
}

func (s *redisSnapshotStore) Save(ctx context.Context, key Key, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), string(data), s.ttl); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (s *redisSnapshotStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

func (s *redisSnapshotStore) key(key Key) string {
	return s.client.CartKey(key.TenantID.String(), key.SessionID)
}
