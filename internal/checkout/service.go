package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/internal/checkout/helpers"
	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

type cartLoader interface {
	Load(ctx context.Context, key cart.Key) (*cart.Aggregator, error)
}

type zoneReader interface {
	ListDeliveryZones(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryZone, error)
}

type settingsReader interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (*tenants.Settings, error)
}

type orderWriter interface {
	CreateOrder(ctx context.Context, order *models.Order) (uuid.UUID, error)
}

// Service submits a session cart as an order.
type Service interface {
	Submit(ctx context.Context, key cart.Key, input Input) (*Result, error)
}

// Input is what the customer fills in on the checkout form.
type Input struct {
	CustomerID    *uuid.UUID
	CustomerName  string
	CustomerPhone string
	DeliveryType  enums.DeliveryType
	Address       models.OrderAddress
	PaymentMethod string
	ChangeFor     *decimal.Decimal
}

// Result is returned once the order is committed.
type Result struct {
	OrderID       uuid.UUID       `json:"orderId"`
	ShortID       string          `json:"shortId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	VendorMessage VendorMessage   `json:"vendorMessage"`
}

// Deps wires the checkout orchestrator.
type Deps struct {
	Carts                cartLoader
	Zones                zoneReader
	Tenants              settingsReader
	Orders               orderWriter
	DefaultClosedMessage string
	Metrics              *metrics.DeskMetrics
	Logger               *logger.Logger
}

type service struct {
	carts         cartLoader
	zones         zoneReader
	tenants       settingsReader
	orders        orderWriter
	closedMessage string
	metrics       *metrics.DeskMetrics
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(deps Deps) (Service, error) {
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart loader required")
	}
	if deps.Zones == nil {
		return nil, fmt.Errorf("zone reader required")
	}
	if deps.Tenants == nil {
		return nil, fmt.Errorf("tenant settings reader required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	closed := strings.TrimSpace(deps.DefaultClosedMessage)
	if closed == "" {
		return nil, fmt.Errorf("default closed message required")
	}
	return &service{
		carts:         deps.Carts,
		zones:         deps.Zones,
		tenants:       deps.Tenants,
		orders:        deps.Orders,
		closedMessage: closed,
		metrics:       deps.Metrics,
		logg:          deps.Logger,
		now:           time.Now,
	}, nil
}

// Submit validates the form, composes the order and writes it. Nothing is written and
// the cart is kept whenever an error is returned.
func (s *service) Submit(ctx context.Context, key cart.Key, input Input) (*Result, error) {
	started := s.now()
	if err := key.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart session")
	}
	ctx = s.logg.WithTenantID(ctx, key.TenantID.String())
	ctx = s.logg.WithSessionID(ctx, key.SessionID)

	settings, err := s.tenants.Settings(ctx, key.TenantID)
	if err != nil {
		return nil, err
	}

	order, err := s.compose(key, settings, input)
	if err != nil {
		s.metrics.ObserveCheckout(rejectionResult(err), started)
		return nil, err
	}

	agg, err := s.carts.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if agg.IsEmpty() {
		s.metrics.ObserveCheckout(metrics.CheckoutRejected, started)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Seu carrinho está vazio.")
	}

	zones, err := s.zones.ListDeliveryZones(ctx, key.TenantID)
	if err != nil {
		return nil, err
	}
	neighborhood := ""
	if order.Address != nil {
		neighborhood = order.Address.Neighborhood
	}
	order.Lines = helpers.BuildLines(agg.Items())
	totals := helpers.ComputeTotals(order.Lines, helpers.DeliveryFee(order.DeliveryType, zones, neighborhood))
	order.DeliveryFee = totals.DeliveryFee
	order.TotalAmount = totals.Total

	orderID, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		s.metrics.ObserveCheckout(metrics.CheckoutSubmission, started)
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubmission, err, "Não foi possível enviar o pedido. Tente novamente.")
	}
	order.ID = orderID

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	if err := agg.Clear(ctx); err != nil {
		// the order exists; a stale cart is recoverable by the customer
		s.logg.Error(ctx, "checkout.clear_cart_failed", err)
	}
	s.metrics.ObserveCheckout(metrics.CheckoutAccepted, started)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total_amount":  order.TotalAmount.StringFixed(2),
		"delivery_type": order.DeliveryType,
		"item_count":    totals.ItemCount,
	}), "checkout.order_submitted")

	return &Result{
		OrderID:       orderID,
		ShortID:       receipts.ShortID(*order),
		Subtotal:      totals.Subtotal,
		DeliveryFee:   totals.DeliveryFee,
		TotalAmount:   totals.Total,
		VendorMessage: ComposeVendorMessage(*order, settings.Display),
	}, nil
}

// compose runs the form checks in order and returns the order without lines or totals.
func (s *service) compose(key cart.Key, settings *tenants.Settings, input Input) (*models.Order, error) {
	if !settings.IsOpen(s.now()) {
		msg := settings.ClosedMessage
		if msg == "" {
			msg = s.closedMessage
		}
		return nil, pkgerrors.New(pkgerrors.CodeStoreClosed, msg)
	}
	if err := helpers.ValidateCustomer(input.CustomerName, input.CustomerPhone); err != nil {
		return nil, err
	}
	payment, err := helpers.ValidatePayment(settings, input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	address, err := helpers.ValidateAddress(input.DeliveryType, input.Address)
	if err != nil {
		return nil, err
	}

	var changeFor *decimal.Decimal
	if input.ChangeFor != nil && input.ChangeFor.IsPositive() {
		v := *input.ChangeFor
		changeFor = &v
	}

	return &models.Order{
		TenantID:      key.TenantID,
		CustomerID:    input.CustomerID,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		DeliveryType:  input.DeliveryType,
		Address:       address,
		PaymentMethod: payment,
		ChangeFor:     changeFor,
		Status:        enums.OrderStatusNew,
	}, nil
}

func rejectionResult(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeStoreClosed) {
		return metrics.CheckoutClosed
	}
	return metrics.CheckoutRejected
}
