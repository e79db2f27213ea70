package cron

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeInboxPruner struct {
	cutoff  time.Time
	deleted int64
	err     error
	calls   int
}

func (f *fakeInboxPruner) DeleteOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.deleted, f.err
}

type fakeOutboxPruner struct {
	cutoff   time.Time
	attempts int
	err      error
	calls    int
}

func (f *fakeOutboxPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.attempts = minAttemptCount
	return 3, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestInboxRetentionJobUsesRetentionWindow(t *testing.T) {
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	repo := &fakeInboxPruner{deleted: 12}
	job, err := NewInboxRetentionJob(InboxRetentionJobParams{Logger: testLogger(), DB: passthroughTx{}, Repository: repo, RetentionDays: 7})
	require.NoError(t, err)
	job.(*inboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.calls)
	assert.True(t, repo.cutoff.Equal(now.Add(-7*24*time.Hour)))
	assert.Equal(t, "inbox-retention", job.Name())
}

func TestInboxRetentionJobDefaultsAndErrors(t *testing.T) {
	repo := &fakeInboxPruner{err: errors.New("boom")}
	job, err := NewInboxRetentionJob(InboxRetentionJobParams{Logger: testLogger(), DB: passthroughTx{}, Repository: repo})
	require.NoError(t, err)
	assert.Equal(t, defaultInboxRetentionDays, job.(*inboxRetentionJob).days)
	assert.ErrorContains(t, job.Run(context.Background()), "inbox retention")

	_, err = NewInboxRetentionJob(InboxRetentionJobParams{Logger: testLogger(), DB: passthroughTx{}})
	assert.Error(t, err)
}

func TestOutboxRetentionJobPassesDeadAttempts(t *testing.T) {
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), DB: passthroughTx{}, Repository: repo, DeadAttempts: 4})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 4, repo.attempts)
	assert.True(t, repo.cutoff.Equal(now.Add(-defaultOutboxRetentionDays*24*time.Hour)))

	repo.err = errors.New("locked")
	assert.ErrorContains(t, job.Run(context.Background()), "outbox retention")
	assert.Equal(t, 2, repo.calls)
}

type fakeDeadLetterCounter struct {
	since  time.Time
	counts map[enums.OutboxDLQErrorReason]int64
	err    error
}

func (f *fakeDeadLetterCounter) CountSince(_ context.Context, since time.Time) (map[enums.OutboxDLQErrorReason]int64, error) {
	f.since = since
	return f.counts, f.err
}

func TestDLQReportJobWarnsOnDeadLetters(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: &buf})
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	counter := &fakeDeadLetterCounter{counts: map[enums.OutboxDLQErrorReason]int64{
		enums.OutboxDLQReasonMaxAttempts:  2,
		enums.OutboxDLQReasonNonRetryable: 1,
	}}
	job, err := NewDLQReportJob(logg, counter, 24*time.Hour)
	require.NoError(t, err)
	job.(*dlqReportJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-24*time.Hour), counter.since)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"dlq_total":3`)
	assert.Contains(t, buf.String(), `"dlq_max_attempts":2`)
}

func TestDLQReportJobQuietWindowAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: &buf})
	counter := &fakeDeadLetterCounter{counts: map[enums.OutboxDLQErrorReason]int64{}}
	job, err := NewDLQReportJob(logg, counter, 0)
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.NotContains(t, buf.String(), `"level":"warn"`)

	counter.err = errors.New("db down")
	assert.ErrorContains(t, job.Run(context.Background()), "db down")

	_, err = NewDLQReportJob(logg, nil, time.Hour)
	assert.Error(t, err)
}
