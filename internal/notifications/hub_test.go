package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

type stubSettings struct {
	settings *tenants.Settings
	err      error
}

func (s stubSettings) Settings(context.Context, uuid.UUID) (*tenants.Settings, error) {
	return s.settings, s.err
}

func newTestHub(t *testing.T, settings *tenants.Settings, source *fakeOrderSource) *Hub {
	t.Helper()
	hub, err := NewHub(HubDeps{
		Orders:  source,
		Tenants: stubSettings{settings: settings},
		Config: config.NotificationsConfig{
			AlertDuration:      8 * time.Second,
			PrintDelay:         50 * time.Millisecond,
			PlaybackAckTimeout: time.Second,
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return hub
}

func TestNewHubValidates(t *testing.T) {
	_, err := NewHub(HubDeps{Orders: &fakeOrderSource{}, Tenants: stubSettings{}, Logger: testLogger(), PrintMode: enums.PrintModePDF})
	assert.EqualError(t, err, "pdf surface required in pdf print mode")

	_, err = NewHub(HubDeps{Orders: &fakeOrderSource{}, Tenants: stubSettings{}, Logger: testLogger(), PrintMode: "fax"})
	assert.Error(t, err)
}

func TestHubOpenGetClose(t *testing.T) {
	settings := testSettings(t, true, false)
	source := &fakeOrderSource{}
	hub := newTestHub(t, settings, source)

	_, err := hub.Open(context.Background(), uuid.Nil, "op-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	session, err := hub.Open(context.Background(), settings.TenantID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, "op-1", session.OperatorID())

	got, err := hub.Get(settings.TenantID, session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = hub.Get(uuid.New(), session.ID())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "sessions are tenant scoped")

	require.NoError(t, hub.Close(context.Background(), session.ID()))
	require.NoError(t, hub.Close(context.Background(), session.ID()))
	assert.Zero(t, hub.Len())
	assert.Equal(t, 1, source.unsubscribed)
	select {
	case <-session.Done():
	default:
		t.Fatal("session should be closed")
	}
}

func TestHubOpenPropagatesFailures(t *testing.T) {
	settings := testSettings(t, true, false)

	hub, err := NewHub(HubDeps{
		Orders:  &fakeOrderSource{},
		Tenants: stubSettings{err: pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")},
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	_, err = hub.Open(context.Background(), settings.TenantID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	failing := newTestHub(t, settings, &fakeOrderSource{subscribeErr: errors.New("boom")})
	_, err = failing.Open(context.Background(), settings.TenantID, "")
	assert.Error(t, err)
	assert.Zero(t, failing.Len())
}

func TestHubShutdownClosesEverySession(t *testing.T) {
	settings := testSettings(t, true, false)
	hub := newTestHub(t, settings, &fakeOrderSource{})

	first, err := hub.Open(context.Background(), settings.TenantID, "a")
	require.NoError(t, err)
	second, err := hub.Open(context.Background(), settings.TenantID, "b")
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Len())
	for _, s := range []*Session{first, second} {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %s still open", s.ID())
		}
	}
}

func TestHubSessionStreamsNewOrderAndBrowserPrint(t *testing.T) {
	settings := testSettings(t, true, true)
	source := &fakeOrderSource{}
	hub := newTestHub(t, settings, source)

	session, err := hub.Open(context.Background(), settings.TenantID, "op-1")
	require.NoError(t, err)

	order := (&engineHarness{}).order(settings.TenantID, time.Now().Add(time.Minute))
	go source.deliver(orders.Change{Type: orders.ChangeAdded, Order: order})

	alert := nextEvent(t, session)
	require.Equal(t, EventAlert, alert.Name)
	assert.Equal(t, order.ID, alert.Data.(Alert).OrderID)

	chime := nextEvent(t, session)
	require.Equal(t, EventChime, chime.Name)
	require.NoError(t, session.Ack(chime.Data.(chimePayload).ChimeID, true))

	printed := nextEvent(t, session)
	require.Equal(t, EventPrint, printed.Name)
	payload := printed.Data.(printPayload)
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Contains(t, payload.Document, "Pizzaria Bella")

	require.Eventually(t, func() bool { return len(source.updatesSnapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, enums.OrderStatusPreparing, source.updatesSnapshot()[0].status)
}
