package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
)

// FeedEvent is a committed order write fanned out to live subscribers.
type FeedEvent struct {
	TenantID uuid.UUID    `json:"tenantId"`
	Order    models.Order `json:"order"`
}

// FeedSubscription streams events for one tenant until closed.
type FeedSubscription interface {
	Events() <-chan FeedEvent
	Close() error
}

// Feed carries order writes from the writer to every live subscriber of the tenant.
type Feed interface {
	Publish(ctx context.Context, event FeedEvent) error
	Subscribe(ctx context.Context, tenantID uuid.UUID) (FeedSubscription, error)
}

type redisPubSub interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (*redis.Subscription, error)
	OrderFeedChannel(tenantID string) string
}

// RedisFeed shares order writes between API instances over Redis pub/sub.
type RedisFeed struct {
	client redisPubSub
	logg   *logger.Logger
}

func NewRedisFeed(client redisPubSub, logg *logger.Logger) (*RedisFeed, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &RedisFeed{client: client, logg: logg}, nil
}

func (f *RedisFeed) Publish(ctx context.Context, event FeedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	return f.client.Publish(ctx, f.client.OrderFeedChannel(event.TenantID.String()), payload)
}

func (f *RedisFeed) Subscribe(ctx context.Context, tenantID uuid.UUID) (FeedSubscription, error) {
	sub, err := f.client.Subscribe(ctx, f.client.OrderFeedChannel(tenantID.String()))
	if err != nil {
		return nil, err
	}
	rs := &redisFeedSubscription{sub: sub, events: make(chan FeedEvent)}
	go rs.pump(ctx, f.logg)
	return rs, nil
}

type redisFeedSubscription struct {
	sub    *redis.Subscription
	events chan FeedEvent
}

func (s *redisFeedSubscription) pump(ctx context.Context, logg *logger.Logger) {
	defer close(s.events)
	for payload := range s.sub.Payloads() {
		var event FeedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "dropping malformed order feed payload")
			continue
		}
		s.events <- event
	}
}

func (s *redisFeedSubscription) Events() <-chan FeedEvent { return s.events }

func (s *redisFeedSubscription) Close() error {
	err := s.sub.Close()
	// drain so pump can observe the closed payload channel
	go func() {
		for range s.events {
		}
	}()
	return err
}

// MemoryFeed is an in-process Feed for tests. The binaries fan out through RedisFeed.
type MemoryFeed struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[uuid.UUID]map[int]*memorySubscription
	dropped atomic.Int64
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[uuid.UUID]map[int]*memorySubscription)}
}

// Publish never blocks on slow subscribers: each has a buffered queue and events
// beyond it are dropped and counted in Dropped.
func (f *MemoryFeed) Publish(_ context.Context, event FeedEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subs[event.TenantID] {
		if !sub.deliver(event) {
			f.dropped.Add(1)
		}
	}
	return nil
}

// Dropped is the number of events lost to full subscriber queues.
func (f *MemoryFeed) Dropped() int64 {
	return f.dropped.Load()
}

func (f *MemoryFeed) Subscribe(_ context.Context, tenantID uuid.UUID) (FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &memorySubscription{
		id:     f.nextID,
		tenant: tenantID,
		events: make(chan FeedEvent, 64),
		feed:   f,
	}
	if f.subs[tenantID] == nil {
		f.subs[tenantID] = make(map[int]*memorySubscription)
	}
	f.subs[tenantID][sub.id] = sub
	return sub, nil
}

type memorySubscription struct {
	id     int
	tenant uuid.UUID
	events chan FeedEvent
	feed   *MemoryFeed

	mu     sync.Mutex
	closed bool
}

// deliver reports false when the queue was full.
func (s *memorySubscription) deliver(event FeedEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

func (s *memorySubscription) Events() <-chan FeedEvent { return s.events }

func (s *memorySubscription) Close() error {
	s.feed.mu.Lock()
	delete(s.feed.subs[s.tenant], s.id)
	if len(s.feed.subs[s.tenant]) == 0 {
		delete(s.feed.subs, s.tenant)
	}
	s.feed.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
