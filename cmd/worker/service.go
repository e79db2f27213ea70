package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   pinger
	Redis                pinger
	PubSub               pinger
	NotificationConsumer runner
}

type namedConsumer struct {
	name   string
	runner runner
}

// Service keeps the worker's Pub/Sub consumers running and reports a heartbeat while
// they do.
type Service struct {
	logg      *logger.Logger
	deps      map[string]pinger
	consumers []namedConsumer
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"config", params.Config == nil},
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"redis client", params.Redis == nil},
		{"pubsub client", params.PubSub == nil},
		{"notification consumer", params.NotificationConsumer == nil},
	}
	for _, dep := range required {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}
	return &Service{
		logg: params.Logger,
		deps: map[string]pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		},
		consumers: []namedConsumer{{name: "order-inbox", runner: params.NotificationConsumer}},
		heartbeat: heartbeatInterval,
	}, nil
}

// checkDependencies pings every dependency in a fixed order and stops at the first failure.
func (s *Service) checkDependencies(ctx context.Context) error {
	for _, name := range []string{"database", "redis", "pubsub"} {
		if err := s.deps[name].Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", name), "worker dependency unavailable", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

// Run blocks until ctx ends or a consumer stops. A consumer returning early, even
// without an error, stops the worker so the orchestrator restarts it.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	stopped := make(chan error, len(s.consumers))
	for _, c := range s.consumers {
		go func() {
			err := c.runner.Run(s.logg.WithField(ctx, "consumer", c.name))
			if err == nil && ctx.Err() == nil {
				err = fmt.Errorf("consumer %s returned without error", c.name)
			}
			stopped <- err
		}()
	}

	started := time.Now()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker stopped")
			return ctx.Err()
		case err := <-stopped:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
			}
			return err
		case <-ticker.C:
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"consumers": len(s.consumers),
				"uptime_s":  int(time.Since(started).Seconds()),
			}), "worker heartbeat")
		}
	}
}
