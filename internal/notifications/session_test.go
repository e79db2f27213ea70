package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
)

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func playAsync(s *Session, ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() { result <- s.PlayChime(ctx) }()
	return result
}

func TestSessionChimeAcknowledged(t *testing.T) {
	s := newSession(uuid.New(), "op-1", time.Second)
	result := playAsync(s, context.Background())

	ev := nextEvent(t, s)
	require.Equal(t, EventChime, ev.Name)
	payload, ok := ev.Data.(chimePayload)
	require.True(t, ok)

	require.NoError(t, s.Ack(payload.ChimeID, true))
	assert.NoError(t, <-result)
	assert.ErrorIs(t, s.Ack(payload.ChimeID, true), ErrUnknownChime)
}

func TestSessionChimeRefusedIsBlocked(t *testing.T) {
	s := newSession(uuid.New(), "op-1", time.Second)
	result := playAsync(s, context.Background())

	payload := nextEvent(t, s).Data.(chimePayload)
	require.NoError(t, s.Ack(payload.ChimeID, false))
	assert.ErrorIs(t, <-result, ErrPlaybackBlocked)
}

func TestSessionChimeWithoutAnswerCountsAsPlayed(t *testing.T) {
	s := newSession(uuid.New(), "op-1", 10*time.Millisecond)
	result := playAsync(s, context.Background())

	nextEvent(t, s)
	assert.NoError(t, <-result)
}

func TestSessionCloseEndsPendingChime(t *testing.T) {
	s := newSession(uuid.New(), "op-1", time.Minute)
	result := playAsync(s, context.Background())

	nextEvent(t, s)
	s.close()
	s.close()
	assert.ErrorIs(t, <-result, ErrSessionClosed)
	assert.ErrorIs(t, s.ShowAlert(context.Background(), Alert{}), ErrSessionClosed)
	assert.ErrorIs(t, s.PlayChime(context.Background()), ErrSessionClosed)

	select {
	case <-s.Done():
	default:
		t.Fatal("done should be closed")
	}
}

func TestSessionSendRespectsContext(t *testing.T) {
	s := newSession(uuid.New(), "op-1", time.Second)
	for i := 0; i < sessionBuffer; i++ {
		require.NoError(t, s.ReportError(context.Background(), "x"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.ReportError(ctx, "full"), context.Canceled)
}

func TestSessionEventsCarryPayloads(t *testing.T) {
	s := newSession(uuid.New(), "op-1", time.Second)
	ctx := context.Background()
	orderID := uuid.New()

	require.NoError(t, s.SetSoundBlocked(ctx, true))
	require.NoError(t, s.SetSoundBlocked(ctx, false))
	require.NoError(t, s.ReportError(ctx, "falhou"))
	require.NoError(t, s.Print(ctx, receipts.Job{OrderID: orderID, ShortID: "ABCD1234", Document: []byte("<html></html>")}))

	assert.Equal(t, EventSoundBlocked, nextEvent(t, s).Name)
	assert.Equal(t, EventSoundEnabled, nextEvent(t, s).Name)
	assert.Equal(t, messagePayload{Message: "falhou"}, nextEvent(t, s).Data)

	ev := nextEvent(t, s)
	assert.Equal(t, EventPrint, ev.Name)
	assert.Equal(t, printPayload{OrderID: orderID, ShortID: "ABCD1234", Document: "<html></html>"}, ev.Data)
}

func TestSessionWithoutEngine(t *testing.T) {
	s := newSession(uuid.New(), "", time.Second)
	assert.False(t, s.PlaybackBlocked())
	assert.NoError(t, s.Interact(context.Background()))
}
