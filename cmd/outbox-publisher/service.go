package main

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	batchJobName          = "outbox-publish"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Routes           eventResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.JobMetrics
}

// Service drains the order outbox into the orders topic. Rows that cannot be published
// after maxAttempts, or never could be, are copied to the DLQ and pinned as terminal.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	routes           eventResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	topics           *topicPublishers
	metrics          *metrics.JobMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"pubsub client", params.PubSub == nil},
		{"outbox repository", params.Repository == nil},
		{"event routes", params.Routes == nil},
		{"dlq repository", params.DLQRepository == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	factory := params.PublisherFactory
	var topics *topicPublishers
	if factory == nil {
		topics = &topicPublishers{client: params.PubSub, byTopic: make(map[string]*gcppubsub.Publisher)}
		factory = topics.get
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		routes:           params.Routes,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		topics:           topics,
		metrics:          params.Metrics,
		batchSize:        orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(orDefault(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// checkDependencies fails fast when the database or Pub/Sub is unreachable at startup.
func (s *Service) checkDependencies(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", check.name), "outbox publisher dependency unavailable", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

// Run polls until ctx ends. A batch that fetched rows is followed by the next one right
// away; an empty batch waits one poll interval; a failed one backs off exponentially up
// to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	var wait time.Duration
	for {
		if err := s.sleep(ctx, withJitter(wait)); err != nil {
			s.logg.Info(ctx, "outbox publisher stopped")
			return err
		}

		started := time.Now()
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.metrics.Track(batchJobName, started, err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
			s.logg.Error(s.logg.WithField(ctx, "retry_in_ms", wait.Milliseconds()), "outbox batch failed", err)
		case processed:
			s.metrics.Track(batchJobName, started, nil)
			wait = 0
		default:
			wait = s.pollInterval
		}
	}
}

// processBatch reports whether any row was fetched. Every resolvable row of the batch
// is handed to its publisher first, then the results are awaited in fetch order. Only
// bookkeeping failures abort the transaction; publish failures are recorded per row.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var fetched int
	var tally batchTally
	started := time.Now()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		fetched = len(events)
		if fetched == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		inFlight := make([]pendingPublish, 0, fetched)
		for _, event := range events {
			resolved, resolveErr := s.routes.Resolve(event)
			if resolveErr != nil {
				if err := s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, resolveErr, eventFields(event, nil)); err != nil {
					return err
				}
				tally.deadLettered++
				continue
			}
			inFlight = append(inFlight, s.startPublish(publishCtx, event, resolved))
		}

		for _, p := range inFlight {
			result, err := s.settle(ctx, tx, p, p.wait(publishCtx))
			if err != nil {
				return err
			}
			tally.count(result)
		}
		return nil
	})
	if fetched > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"fetched":       fetched,
			"published":     tally.published,
			"retried":       tally.retried,
			"dead_lettered": tally.deadLettered,
			"duration_ms":   time.Since(started).Milliseconds(),
		}), "outbox batch done")
	}
	return fetched > 0, err
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type batchTally struct {
	published    int
	retried      int
	deadLettered int
}

func (t *batchTally) count(o outcome) {
	switch o {
	case outcomePublished:
		t.published++
	case outcomeRetry:
		t.retried++
	case outcomeDeadLettered:
		t.deadLettered++
	}
}

// pendingPublish is a message handed to a publisher whose ack is still outstanding.
// A publisher that could not take the message leaves result nil and startErr set.
type pendingPublish struct {
	event    models.OutboxEvent
	resolved *registry.Resolved
	result   publishResult
	startErr error
}

func (p pendingPublish) wait(ctx context.Context) error {
	if p.startErr != nil {
		return p.startErr
	}
	_, err := p.result.Get(ctx)
	return err
}

func (s *Service) startPublish(ctx context.Context, event models.OutboxEvent, resolved *registry.Resolved) pendingPublish {
	p := pendingPublish{event: event, resolved: resolved}
	pub := s.publisherFactory(resolved.Topic)
	if pub == nil {
		p.startErr = registry.Permanent(fmt.Errorf("no publisher for topic %s", resolved.Topic))
		return p
	}
	p.result = pub.Publish(ctx, buildMessage(event, resolved.Envelope))
	if p.result == nil {
		p.startErr = registry.Permanent(fmt.Errorf("publisher for topic %s returned no result", resolved.Topic))
	}
	return p
}

// settle records the publish outcome of one row inside the batch transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, p pendingPublish, publishErr error) (outcome, error) {
	event := p.event
	fields := eventFields(event, p.resolved)

	switch {
	case publishErr == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return 0, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil

	case registry.IsPermanent(publishErr):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, publishErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		err := fmt.Errorf("gave up after %d attempts: %w", attempt, publishErr)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, err, fields)
	}

	s.logg.Warn(s.logg.WithFields(ctx, withError(fields, publishErr)), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return 0, fmt.Errorf("record failed attempt %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithFields(ctx, withError(fields, cause)), "outbox event dead-lettered")

	if err := s.dlq.InsertTx(tx, outbox.NewDeadLetter(event, reason, cause, time.Now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// buildMessage carries the stored envelope verbatim; consumers route on event_type
// and dedupe on the envelope's event id.
func buildMessage(event models.OutboxEvent, envelope outbox.Envelope) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       envelope.EventID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	if envelope.TenantID != uuid.Nil {
		attrs["tenant_id"] = envelope.TenantID.String()
	}
	return &gcppubsub.Message{Data: event.Payload, Attributes: attrs}
}

func eventFields(event models.OutboxEvent, resolved *registry.Resolved) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID.String()
		fields["topic"] = resolved.Topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func withError(fields map[string]any, err error) map[string]any {
	out := maps.Clone(fields)
	out["error"] = err.Error()
	return out
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

// Close flushes and stops the topic publishers opened by Run.
func (s *Service) Close() {
	if s.topics != nil {
		s.topics.stop()
	}
}

// topicPublishers keeps one Pub/Sub publisher per topic; each one batches and runs
// background goroutines until stopped.
type topicPublishers struct {
	client  pubSubClient
	mu      sync.Mutex
	byTopic map[string]*gcppubsub.Publisher
}

func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byTopic[topic]
	if !ok {
		p = t.client.Publisher(topic)
		if p == nil {
			return nil
		}
		t.byTopic[topic] = p
	}
	return gcpPublisher{p}
}

func (t *topicPublishers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, p := range t.byTopic {
		p.Stop()
		delete(t.byTopic, topic)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
