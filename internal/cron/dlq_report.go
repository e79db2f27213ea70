package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type deadLetterCounter interface {
	CountSince(ctx context.Context, since time.Time) (map[enums.OutboxDLQErrorReason]int64, error)
}

// NewDLQReportJob logs how many outbox events were dead-lettered during the last
// window. Dead letters mean an order never reached the operator inbox, so a
// non-empty window is logged at warn level for alerting.
func NewDLQReportJob(logg *logger.Logger, counter deadLetterCounter, window time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if counter == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	if window <= 0 {
		window = defaultInterval
	}
	return &dlqReportJob{logg: logg, counter: counter, window: window, now: time.Now}, nil
}

type dlqReportJob struct {
	logg    *logger.Logger
	counter deadLetterCounter
	window  time.Duration
	now     func() time.Time
}

func (j *dlqReportJob) Name() string { return "dlq-report" }

func (j *dlqReportJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.window)
	counts, err := j.counter.CountSince(ctx, since)
	if err != nil {
		return fmt.Errorf("count dead letters: %w", err)
	}
	var total int64
	fields := map[string]any{"since": since}
	for reason, n := range counts {
		fields["dlq_"+string(reason)] = n
		total += n
	}
	fields["dlq_total"] = total

	logCtx := j.logg.WithFields(ctx, fields)
	if total > 0 {
		j.logg.Warn(logCtx, "outbox events dead-lettered")
		return nil
	}
	j.logg.Info(logCtx, "no dead-lettered outbox events")
	return nil
}
