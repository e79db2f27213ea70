package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ChangeType classifies a live query change, relative to the subscriber's result set.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one delivery of a live order query.
type Change struct {
	Type  ChangeType
	Order models.Order
}

// ChangeHandler receives changes sequentially from a single goroutine, in store order.
type ChangeHandler func(ctx context.Context, change Change)

// ErrorHandler receives subscription failures. Permission failures arrive as
// PERMISSION_DENIED errors after being emitted to the permission listeners.
type ErrorHandler func(ctx context.Context, err error)

// Unsubscribe stops a live query. It is safe to call more than once.
type Unsubscribe func()

// Store is the order document store used by checkout, operators and the alert engine.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) (uuid.UUID, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus) error
	SubscribeNewOrders(ctx context.Context, tenantID uuid.UUID, statuses []enums.OrderStatus, onChange ChangeHandler, onError ErrorHandler) (Unsubscribe, error)
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// StoreDeps wires a Store.
type StoreDeps struct {
	DB          txRunner
	Repo        *Repository
	Outbox      outboxEmitter
	Feed        Feed
	Permissions *pkgerrors.Emitter
	Logger      *logger.Logger
}

type store struct {
	tx          txRunner
	repo        *Repository
	outbox      outboxEmitter
	feed        Feed
	permissions *pkgerrors.Emitter
	logg        *logger.Logger
	now         func() time.Time
}

func NewStore(deps StoreDeps) (Store, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Feed == nil {
		return nil, fmt.Errorf("order feed required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &store{
		tx:          deps.DB,
		repo:        deps.Repo,
		outbox:      deps.Outbox,
		feed:        deps.Feed,
		permissions: deps.Permissions,
		logg:        deps.Logger,
		now:         time.Now,
	}, nil
}

// CreateOrder writes the order row and its order_created outbox event in one
// transaction. The id is only returned after commit.
func (s *store) CreateOrder(ctx context.Context, order *models.Order) (uuid.UUID, error) {
	if order == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.TenantID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if len(order.Lines) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusNew
	}
	now := s.now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			TenantID:      order.TenantID,
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				TenantID:     order.TenantID,
				CustomerName: order.CustomerName,
				DeliveryType: order.DeliveryType,
				Status:       order.Status,
				TotalAmount:  order.TotalAmount,
				CreatedAt:    now,
			},
		})
	})
	if err != nil {
		return uuid.Nil, s.storeError(ctx, err, orderPath(order.TenantID, order.ID), "create", order, "create order")
	}

	s.publish(ctx, *order)
	return order.ID, nil
}

// UpdateOrderStatus is a single-field write plus an order_status_changed event. Writing
// the status the order already holds is a no-op. Transition rules are not enforced here.
func (s *store) UpdateOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}

	var (
		updated models.Order
		changed bool
	)
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForTenant(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if current.Status == status {
			updated = *current
			return nil
		}
		ok, err := repo.UpdateStatus(ctx, tenantID, orderID, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return gorm.ErrRecordNotFound
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			TenantID:      tenantID,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    orderID,
				TenantID:   tenantID,
				FromStatus: current.Status,
				ToStatus:   status,
				ChangedAt:  now,
			},
		}); err != nil {
			return err
		}
		current.Status = status
		current.UpdatedAt = now
		updated = *current
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return s.storeError(ctx, err, orderPath(tenantID, orderID), "update", map[string]any{"status": status}, "update order status")
	}

	if changed {
		s.publish(ctx, updated)
	}
	return nil
}

func (s *store) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, s.storeError(ctx, err, "orders/"+orderID.String(), "get", nil, "load order")
	}
	return order, nil
}

// SubscribeNewOrders opens a live query over the tenant orders whose status is in
// statuses (pending statuses when empty). Orders already matching are delivered
// first as "added"; afterwards every committed write is classified against the
// subscriber's result set.
func (s *store) SubscribeNewOrders(ctx context.Context, tenantID uuid.UUID, statuses []enums.OrderStatus, onChange ChangeHandler, onError ErrorHandler) (Unsubscribe, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if onChange == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change handler required")
	}
	if len(statuses) == 0 {
		statuses = enums.PendingOrderStatuses()
	}

	subCtx, cancel := context.WithCancel(ctx)
	feedSub, err := s.feed.Subscribe(subCtx, tenantID)
	if err != nil {
		cancel()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to order feed")
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = feedSub.Close()
		})
	}

	q := &liveQuery{
		store:    s,
		tenantID: tenantID,
		statuses: statuses,
		members:  make(map[uuid.UUID]struct{}),
		onChange: onChange,
		onError:  onError,
	}
	go func() {
		defer unsubscribe()
		q.run(subCtx, feedSub)
	}()
	return unsubscribe, nil
}

type liveQuery struct {
	store    *store
	tenantID uuid.UUID
	statuses []enums.OrderStatus
	members  map[uuid.UUID]struct{}
	onChange ChangeHandler
	onError  ErrorHandler
}

func (q *liveQuery) run(ctx context.Context, sub FeedSubscription) {
	rows, err := q.store.repo.ListByStatus(ctx, q.tenantID, q.statuses)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.fail(ctx, q.store.storeError(ctx, err, "tenants/"+q.tenantID.String()+"/orders", "list", map[string]any{"status_in": q.statuses}, "list pending orders"))
		return
	}
	for _, order := range rows {
		q.members[order.ID] = struct{}{}
		q.emit(ctx, Change{Type: ChangeAdded, Order: order})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if change, ok := q.classify(event.Order); ok {
				q.emit(ctx, change)
			}
		}
	}
}

func (q *liveQuery) classify(order models.Order) (Change, bool) {
	if order.TenantID != q.tenantID {
		return Change{}, false
	}
	_, member := q.members[order.ID]
	matches := false
	for _, status := range q.statuses {
		if order.Status == status {
			matches = true
			break
		}
	}
	switch {
	case matches && !member:
		q.members[order.ID] = struct{}{}
		return Change{Type: ChangeAdded, Order: order}, true
	case matches:
		return Change{Type: ChangeModified, Order: order}, true
	case member:
		delete(q.members, order.ID)
		return Change{Type: ChangeRemoved, Order: order}, true
	}
	return Change{}, false
}

func (q *liveQuery) emit(ctx context.Context, change Change) {
	if ctx.Err() != nil {
		return
	}
	q.onChange(ctx, change)
}

func (q *liveQuery) fail(ctx context.Context, err error) {
	if q.onError != nil {
		q.onError(ctx, err)
		return
	}
	q.store.logg.Error(q.store.logg.WithTenantID(ctx, q.tenantID.String()), "order subscription failed", err)
}

// storeError converts a database failure into a PERMISSION_DENIED error (emitted to
// the permission listeners first) or a DEPENDENCY_ERROR.
func (s *store) storeError(ctx context.Context, err error, path, operation string, payload any, msg string) error {
	if db.IsPermissionDenied(err) {
		perr := pkgerrors.NewPermissionError(path, operation, payload, err)
		s.permissions.Emit(ctx, perr)
		return pkgerrors.Wrap(pkgerrors.CodePermission, perr, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// publish fans the committed write out to live subscribers. The write is already
// durable, so a feed failure is only logged.
func (s *store) publish(ctx context.Context, order models.Order) {
	if err := s.feed.Publish(ctx, FeedEvent{TenantID: order.TenantID, Order: order}); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": order.TenantID.String(),
			"order_id":  order.ID.String(),
		})
		s.logg.Error(logCtx, "publish order feed event", err)
	}
}

func orderPath(tenantID, orderID uuid.UUID) string {
	return "tenants/" + tenantID.String() + "/orders/" + orderID.String()
}
