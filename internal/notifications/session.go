package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
)

// Stream event names.
const (
	EventChime        = "chime"
	EventAlert        = "alert"
	EventSoundBlocked = "sound_blocked"
	EventSoundEnabled = "sound_enabled"
	EventPrint        = "print"
	EventError        = "error"
)

var (
	// ErrSessionClosed is returned when writing to a session whose stream has ended.
	ErrSessionClosed = errors.New("operator session closed")
	// ErrUnknownChime is returned by Ack for a chime id that is not awaiting an answer.
	ErrUnknownChime = errors.New("unknown chime id")
)

const sessionBuffer = 32

// Event is one server-sent event for the operator's browser.
type Event struct {
	Name string
	Data any
}

type chimePayload struct {
	ChimeID string `json:"chimeId"`
}

type printPayload struct {
	OrderID  uuid.UUID `json:"orderId"`
	ShortID  string    `json:"shortId"`
	Document string    `json:"document"`
}

type messagePayload struct {
	Message string `json:"message"`
}

// Session is one operator browser connection. It is the engine's Surface and, in
// browser print mode, the receipt print surface: receipts open in a window that prints
// itself and closes.
type Session struct {
	id         string
	tenantID   uuid.UUID
	operatorID string
	ackTimeout time.Duration
	events     chan Event
	done       chan struct{}
	engine     *Engine

	mu     sync.Mutex
	acks   map[string]chan bool
	closed bool
}

func newSession(tenantID uuid.UUID, operatorID string, ackTimeout time.Duration) *Session {
	return &Session{
		id:         uuid.NewString(),
		tenantID:   tenantID,
		operatorID: operatorID,
		ackTimeout: ackTimeout,
		events:     make(chan Event, sessionBuffer),
		done:       make(chan struct{}),
		acks:       make(map[string]chan bool),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) TenantID() uuid.UUID  { return s.tenantID }
func (s *Session) OperatorID() string   { return s.operatorID }
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// PlaybackBlocked reports whether the browser is showing the "tap to enable sound" prompt.
func (s *Session) PlaybackBlocked() bool {
	if s.engine == nil {
		return false
	}
	return s.engine.PlaybackBlocked()
}

// PlayChime asks the browser to play the chime and waits for its acknowledgement. A
// browser that never answers is assumed to have played it.
func (s *Session) PlayChime(ctx context.Context) error {
	id := uuid.NewString()
	ack := make(chan bool, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.acks[id] = ack
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.acks, id)
		s.mu.Unlock()
	}()

	if err := s.send(ctx, Event{Name: EventChime, Data: chimePayload{ChimeID: id}}); err != nil {
		return err
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()
	select {
	case played := <-ack:
		if !played {
			return ErrPlaybackBlocked
		}
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// Ack records the browser's playback result for a chime.
func (s *Session) Ack(chimeID string, played bool) error {
	s.mu.Lock()
	ack, ok := s.acks[chimeID]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownChime
	}
	select {
	case ack <- played:
	default:
	}
	return nil
}

// Interact forwards a user gesture to the engine.
func (s *Session) Interact(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Interact(ctx)
}

func (s *Session) ShowAlert(ctx context.Context, alert Alert) error {
	return s.send(ctx, Event{Name: EventAlert, Data: alert})
}

func (s *Session) SetSoundBlocked(ctx context.Context, blocked bool) error {
	name := EventSoundEnabled
	if blocked {
		name = EventSoundBlocked
	}
	return s.send(ctx, Event{Name: name, Data: struct{}{}})
}

func (s *Session) ReportError(ctx context.Context, message string) error {
	return s.send(ctx, Event{Name: EventError, Data: messagePayload{Message: message}})
}

// Print implements receipts.Surface for browser print mode.
func (s *Session) Print(ctx context.Context, job receipts.Job) error {
	return s.send(ctx, Event{Name: EventPrint, Data: printPayload{
		OrderID:  job.OrderID,
		ShortID:  job.ShortID,
		Document: string(job.Document),
	}})
}

func (s *Session) send(ctx context.Context, ev Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close ends the stream. Events is never closed so late senders cannot panic; readers
// select on Done.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
