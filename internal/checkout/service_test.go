package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

type memorySnapshots struct {
	mu   sync.Mutex
	data map[cart.Key][]byte
}

func (m *memorySnapshots) Load(_ context.Context, key cart.Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, cart.ErrNoSnapshot
	}
	return raw, nil
}

func (m *memorySnapshots) Save(_ context.Context, key cart.Key, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memorySnapshots) Delete(_ context.Context, key cart.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type stubCarts struct {
	store *memorySnapshots
}

func (s stubCarts) Load(ctx context.Context, key cart.Key) (*cart.Aggregator, error) {
	return cart.Restore(ctx, s.store, key, nil)
}

type stubZones struct {
	zones []models.DeliveryZone
	err   error
}

func (s stubZones) ListDeliveryZones(context.Context, uuid.UUID) ([]models.DeliveryZone, error) {
	return s.zones, s.err
}

type stubTenants struct {
	settings *tenants.Settings
	err      error
}

func (s stubTenants) Settings(context.Context, uuid.UUID) (*tenants.Settings, error) {
	return s.settings, s.err
}

type stubOrders struct {
	created []*models.Order
	err     error
}

func (s *stubOrders) CreateOrder(_ context.Context, order *models.Order) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	order.ID = uuid.New()
	s.created = append(s.created, order)
	return order.ID, nil
}

type fixture struct {
	key       cart.Key
	snapshots *memorySnapshots
	orders    *stubOrders
	tenant    models.Tenant
	zones     []models.DeliveryZone
	registry  *prometheus.Registry
	metrics   *metrics.DeskMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tenantID := uuid.New()
	registry := prometheus.NewRegistry()
	return &fixture{
		key:       cart.Key{TenantID: tenantID, SessionID: "sess-1"},
		snapshots: &memorySnapshots{data: make(map[cart.Key][]byte)},
		orders:    &stubOrders{},
		tenant: models.Tenant{
			ID:                    tenantID,
			Name:                  "Pizzaria Bella",
			Phone:                 "(11) 98765-4321",
			PaymentMethodsEnabled: []string{"Dinheiro", "Pix"},
		},
		zones: []models.DeliveryZone{
			{ID: uuid.New(), TenantID: tenantID, Neighborhood: "Centro", DeliveryFee: decimal.RequireFromString("5.00"), IsActive: true},
			{ID: uuid.New(), TenantID: tenantID, Neighborhood: "Jardins", DeliveryFee: decimal.RequireFromString("9.00"), IsActive: false},
		},
		registry: registry,
		metrics:  metrics.NewDeskMetrics(registry),
	}
}

func (f *fixture) service(t *testing.T, now time.Time) *service {
	t.Helper()
	settings, err := tenants.FromModel(f.tenant)
	require.NoError(t, err)
	svc, err := NewService(Deps{
		Carts:                stubCarts{store: f.snapshots},
		Zones:                stubZones{zones: f.zones},
		Tenants:              stubTenants{settings: settings},
		Orders:               f.orders,
		DefaultClosedMessage: "A loja está fechada no momento.",
		Metrics:              f.metrics,
		Logger:               logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	impl := svc.(*service)
	if !now.IsZero() {
		impl.now = func() time.Time { return now }
	}
	return impl
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	agg, err := cart.Restore(context.Background(), f.snapshots, f.key, nil)
	require.NoError(t, err)
	pizza := models.Product{ID: uuid.New(), TenantID: f.key.TenantID, Name: "Pizza Calabresa", Price: decimal.RequireFromString("20.00"), IsActive: true}
	_, err = agg.Add(context.Background(), pizza, 2, "", nil)
	require.NoError(t, err)
}

func (f *fixture) cartItems(t *testing.T) int {
	t.Helper()
	agg, err := cart.Restore(context.Background(), f.snapshots, f.key, nil)
	require.NoError(t, err)
	return agg.TotalItems()
}

func validInput() Input {
	return Input{
		CustomerName:  " Maria ",
		CustomerPhone: "11999990000",
		DeliveryType:  enums.DeliveryTypeDelivery,
		Address:       models.OrderAddress{Street: "Rua A", Number: "10", Neighborhood: "  centro "},
		PaymentMethod: "pix",
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.EqualError(t, err, "cart loader required")
}

func TestSubmitAddsZoneFeeAndClearsCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	svc := f.service(t, time.Time{})

	res, err := svc.Submit(context.Background(), f.key, validInput())
	require.NoError(t, err)
	require.Len(t, f.orders.created, 1)
	order := f.orders.created[0]

	assert.Equal(t, res.OrderID, order.ID)
	assert.Equal(t, "45", res.TotalAmount.String())
	assert.Equal(t, "5", order.DeliveryFee.String())
	assert.Equal(t, "40", res.Subtotal.String())
	assert.True(t, order.TotalAmount.Equal(order.Subtotal().Add(order.DeliveryFee)))
	assert.Equal(t, "Pix", order.PaymentMethod)
	assert.Equal(t, "Maria", order.CustomerName)
	assert.Equal(t, enums.OrderStatusNew, order.Status)
	require.NotNil(t, order.Address)
	assert.Equal(t, "centro", order.Address.Neighborhood)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)

	assert.Zero(t, f.cartItems(t), "cart is cleared after submission")
	assert.Contains(t, res.VendorMessage.URL, "https://wa.me/5511987654321?text=")
	assert.Equal(t, 1.0, counterValue(t, f.registry, metrics.CheckoutAccepted))
}

func TestSubmitUnknownNeighborhoodAndPickupHaveNoFee(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	svc := f.service(t, time.Time{})

	input := validInput()
	input.Address.Neighborhood = "Jardins"
	res, err := svc.Submit(context.Background(), f.key, input)
	require.NoError(t, err)
	assert.True(t, res.DeliveryFee.IsZero(), "inactive zones never match")

	f.fillCart(t)
	pickup := validInput()
	pickup.DeliveryType = enums.DeliveryTypePickup
	pickup.Address = models.OrderAddress{}
	res, err = svc.Submit(context.Background(), f.key, pickup)
	require.NoError(t, err)
	assert.True(t, res.DeliveryFee.IsZero())
	assert.Nil(t, f.orders.created[1].Address)
}

func TestSubmitValidationOrderWritesNothing(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Input)
		field   string
		message string
	}{
		{"name", func(in *Input) { in.CustomerName = " "; in.CustomerPhone = "" }, "customerName", "Informe seu nome."},
		{"phone", func(in *Input) { in.CustomerPhone = ""; in.PaymentMethod = "" }, "customerPhone", "Informe seu telefone."},
		{"payment", func(in *Input) { in.PaymentMethod = "Boleto"; in.Address = models.OrderAddress{} }, "paymentMethod", "Selecione uma forma de pagamento válida."},
		{"street", func(in *Input) { in.Address.Street = "" }, "address.street", "Informe a rua para entrega."},
		{"number", func(in *Input) { in.Address.Number = " " }, "address.number", "Informe o número para entrega."},
		{"neighborhood", func(in *Input) { in.Address.Neighborhood = "" }, "address.neighborhood", "Informe o bairro para entrega."},
		{"delivery type", func(in *Input) { in.DeliveryType = "drone" }, "deliveryType", "Escolha entrega ou retirada."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.fillCart(t)
			svc := f.service(t, time.Time{})

			input := validInput()
			tc.mutate(&input)
			_, err := svc.Submit(context.Background(), f.key, input)
			require.Error(t, err)

			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Equal(t, tc.message, typed.Message())
			details, ok := typed.Details().(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.field, details["field"])

			assert.Empty(t, f.orders.created)
			assert.Equal(t, 2, f.cartItems(t))
		})
	}
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, time.Time{})

	_, err := svc.Submit(context.Background(), f.key, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.orders.created)
}

func TestSubmitClosedStoreUsesTenantMessageOrDefault(t *testing.T) {
	// 2026-03-04 is a Wednesday; the store only opens on Mondays.
	wednesdayNoon := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

	f := newFixture(t)
	f.fillCart(t)
	f.tenant.BusinessHours = models.BusinessHours{"monday": {{Open: "18:00", Close: "23:00"}}}
	svc := f.service(t, wednesdayNoon)

	_, err := svc.Submit(context.Background(), f.key, Input{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStoreClosed, typed.Code())
	assert.Equal(t, "A loja está fechada no momento.", typed.Message())

	custom := "Voltamos segunda às 18h!"
	f.tenant.ClosedMessage = &custom
	svc = f.service(t, wednesdayNoon)
	_, err = svc.Submit(context.Background(), f.key, validInput())
	assert.Equal(t, custom, pkgerrors.As(err).Message())

	assert.Empty(t, f.orders.created)
	assert.Equal(t, 2.0, counterValue(t, f.registry, metrics.CheckoutClosed))
}

func TestSubmitStoreFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.orders.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "create order")
	svc := f.service(t, time.Time{})

	res, err := svc.Submit(context.Background(), f.key, validInput())
	assert.Nil(t, res)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSubmission))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.CodeSubmission).Retryable)
	assert.Equal(t, 2, f.cartItems(t))
	assert.Equal(t, 1.0, counterValue(t, f.registry, metrics.CheckoutSubmission))
}

func TestSubmitPropagatesSettingsFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, time.Time{})
	svc.tenants = stubTenants{err: pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")}

	_, err := svc.Submit(context.Background(), f.key, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSubmitKeepsPositiveChangeOnly(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	svc := f.service(t, time.Time{})

	input := validInput()
	input.PaymentMethod = "dinheiro"
	change := decimal.RequireFromString("100")
	input.ChangeFor = &change
	_, err := svc.Submit(context.Background(), f.key, input)
	require.NoError(t, err)
	require.NotNil(t, f.orders.created[0].ChangeFor)
	assert.Equal(t, "100", f.orders.created[0].ChangeFor.String())

	f.fillCart(t)
	zero := decimal.Zero
	input.ChangeFor = &zero
	_, err = svc.Submit(context.Background(), f.key, input)
	require.NoError(t, err)
	assert.Nil(t, f.orders.created[1].ChangeFor)
}

func counterValue(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "checkout_submissions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
