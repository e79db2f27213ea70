package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/internal/fulfillment"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
)

// ListParams filters the operator order list.
type ListParams struct {
	pagination.Params
	Statuses []enums.OrderStatus
}

// OrderList is one page of the operator list.
type OrderList struct {
	Orders     []OrderDetail `json:"orders"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// OrderDetail pairs an order with the status moves its operator menu offers.
type OrderDetail struct {
	models.Order
	StatusLabel string              `json:"statusLabel"`
	Actions     []enums.OrderStatus `json:"actions"`
}

// TrackingView is the public, customer-facing order status.
type TrackingView struct {
	OrderID     uuid.UUID           `json:"orderId"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Tracker     fulfillment.Tracker `json:"tracker"`
}

// Service exposes the operator and tracking read/write paths.
type Service interface {
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*OrderList, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDetail, error)
	Transition(ctx context.Context, tenantID, orderID uuid.UUID, target enums.OrderStatus) (*OrderDetail, error)
	Track(ctx context.Context, orderID uuid.UUID) (*TrackingView, error)
}

type service struct {
	repo  *Repository
	store Store
}

func NewService(repo *Repository, store Store) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("order store required")
	}
	return &service{repo: repo, store: store}, nil
}

func detailOf(order models.Order) OrderDetail {
	actions := fulfillment.OperatorActions(order.DeliveryType, order.Status)
	if actions == nil {
		actions = []enums.OrderStatus{}
	}
	return OrderDetail{
		Order:       order,
		StatusLabel: order.Status.Label(),
		Actions:     actions,
	}
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	for _, status := range params.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
		}
	}

	rows, err := s.repo.List(ctx, listQuery{
		tenantID: tenantID,
		statuses: params.Statuses,
		cursor:   cursor,
		limit:    params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := &OrderList{Orders: make([]OrderDetail, 0, len(page)), NextCursor: next}
	for _, order := range page {
		out.Orders = append(out.Orders, detailOf(order))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindForTenant(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	detail := detailOf(*order)
	return &detail, nil
}

// Transition applies an operator status change offered by the order's menu.
func (s *service) Transition(ctx context.Context, tenantID, orderID uuid.UUID, target enums.OrderStatus) (*OrderDetail, error) {
	current, err := s.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := fulfillment.ValidateTransition(current.DeliveryType, current.Status, target); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrderStatus(ctx, tenantID, orderID, target); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, orderID)
}

// Track finds the order across tenants and maps it onto the customer tracker.
func (s *service) Track(ctx context.Context, orderID uuid.UUID) (*TrackingView, error) {
	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &TrackingView{
		OrderID:     order.ID,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		TotalAmount: order.TotalAmount,
		Tracker:     fulfillment.Track(order.DeliveryType, order.Status),
	}, nil
}
