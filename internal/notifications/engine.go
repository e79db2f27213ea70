package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

// ErrPlaybackBlocked is returned by a Surface whose audio output was refused, usually
// because the browser requires a user gesture first.
var ErrPlaybackBlocked = errors.New("audio playback blocked")

var (
	errEngineStarted = errors.New("engine already started")
	errEngineStopped = errors.New("engine stopped")
)

// Alert is the transient visual notice of a new order.
type Alert struct {
	OrderID       uuid.UUID       `json:"orderId"`
	ShortID       string          `json:"shortId"`
	CustomerName  string          `json:"customerName"`
	DeliveryLabel string          `json:"deliveryLabel"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
	DurationMS    int64           `json:"durationMs"`
}

// Surface is the operator UI an engine drives.
type Surface interface {
	PlayChime(ctx context.Context) error
	ShowAlert(ctx context.Context, alert Alert) error
	SetSoundBlocked(ctx context.Context, blocked bool) error
	ReportError(ctx context.Context, message string) error
}

type orderSource interface {
	SubscribeNewOrders(ctx context.Context, tenantID uuid.UUID, statuses []enums.OrderStatus, onChange orders.ChangeHandler, onError orders.ErrorHandler) (orders.Unsubscribe, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, status enums.OrderStatus) error
}

type receiptPrinter interface {
	Print(ctx context.Context, order models.Order, info tenants.DisplayInfo) (receipts.Job, error)
}

// EngineDeps wires one Engine.
type EngineDeps struct {
	Orders        orderSource
	Surface       Surface
	Printer       receiptPrinter
	Settings      *tenants.Settings
	AlertDuration time.Duration
	PrintDelay    time.Duration
	Metrics       *metrics.DeskMetrics
	Logger        *logger.Logger
}

// Engine watches one tenant's pending orders for one operator session and raises the
// chime, the visual alert and the optional auto-print for each order created after
// the session started. Every order id is handled at most once per engine.
type Engine struct {
	orders        orderSource
	surface       Surface
	printer       receiptPrinter
	settings      *tenants.Settings
	alertDuration time.Duration
	printDelay    time.Duration
	metrics       *metrics.DeskMetrics
	logg          *logger.Logger
	now           func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	unsub     orders.Unsubscribe
	startedAt time.Time
	stopped   bool
	processed map[uuid.UUID]struct{}
	pending   map[uuid.UUID]struct{}
	timers    map[uuid.UUID]*time.Timer
	blocked   bool
	retrying  bool
	prints    sync.WaitGroup
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if deps.Surface == nil {
		return nil, fmt.Errorf("surface required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("tenant settings required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Settings.Notifications.AutoPrintEnabled && deps.Printer == nil {
		return nil, fmt.Errorf("printer required when auto-print is enabled")
	}
	return &Engine{
		orders:        deps.Orders,
		surface:       deps.Surface,
		printer:       deps.Printer,
		settings:      deps.Settings,
		alertDuration: deps.AlertDuration,
		printDelay:    deps.PrintDelay,
		metrics:       deps.Metrics,
		logg:          deps.Logger,
		now:           time.Now,
		processed:     make(map[uuid.UUID]struct{}),
		pending:       make(map[uuid.UUID]struct{}),
		timers:        make(map[uuid.UUID]*time.Timer),
	}, nil
}

// Start records the session start and subscribes to the tenant's pending orders.
// Orders created up to that instant are marked processed without alerting.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return errEngineStopped
	}
	if e.unsub != nil {
		e.mu.Unlock()
		return errEngineStarted
	}
	e.ctx, e.cancel = context.WithCancel(e.logg.WithTenantID(ctx, e.settings.TenantID.String()))
	e.startedAt = e.now()
	runCtx := e.ctx
	e.mu.Unlock()

	unsub, err := e.orders.SubscribeNewOrders(runCtx, e.settings.TenantID, enums.PendingOrderStatuses(), e.handleChange, e.handleError)
	if err != nil {
		e.cancel()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		unsub()
		return errEngineStopped
	}
	e.unsub = unsub
	e.logg.Info(runCtx, "notifications.engine_started")
	return nil
}

// Stop unsubscribes, cancels pending print timers and waits for prints already
// dispatched until ctx expires.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	unsub := e.unsub
	for id, timer := range e.timers {
		if timer.Stop() {
			e.prints.Done()
		}
		delete(e.timers, id)
	}
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.prints.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight prints: %w", ctx.Err())
	}
}

// PlaybackBlocked reports whether the session is waiting for a user interaction to
// enable sound.
func (e *Engine) PlaybackBlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blocked
}

// Interact is called on any user gesture. While playback is blocked it retries the
// chime once; success clears the blocked state for the rest of the session.
func (e *Engine) Interact(ctx context.Context) error {
	e.mu.Lock()
	if !e.blocked || e.retrying || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.retrying = true
	e.mu.Unlock()

	err := e.surface.PlayChime(ctx)

	e.mu.Lock()
	e.retrying = false
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, ErrPlaybackBlocked) {
			e.metrics.IncPlaybackBlocked()
			return nil
		}
		return err
	}
	e.blocked = false
	e.mu.Unlock()

	e.logg.Info(ctx, "notifications.sound_enabled")
	return e.surface.SetSoundBlocked(ctx, false)
}

func (e *Engine) handleChange(ctx context.Context, change orders.Change) {
	order := change.Order
	switch change.Type {
	case orders.ChangeRemoved:
		e.mu.Lock()
		delete(e.pending, order.ID)
		e.mu.Unlock()
		return
	case orders.ChangeModified:
		return
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if _, seen := e.processed[order.ID]; seen {
		e.mu.Unlock()
		return
	}
	e.processed[order.ID] = struct{}{}
	e.pending[order.ID] = struct{}{}
	if !order.CreatedAt.IsZero() && !order.CreatedAt.After(e.startedAt) {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	logCtx := e.logg.WithOrderID(ctx, order.ID.String())
	e.logg.Info(logCtx, "notifications.new_order")

	e.alert(logCtx, order)
	if e.settings.Notifications.AutoPrintEnabled {
		e.schedulePrint(order)
	}
	if e.settings.Notifications.SoundEnabled {
		e.chime(logCtx)
	}
}

func (e *Engine) alert(ctx context.Context, order models.Order) {
	alert := Alert{
		OrderID:       order.ID,
		ShortID:       receipts.ShortID(order),
		CustomerName:  order.CustomerName,
		DeliveryLabel: order.DeliveryType.Label(),
		TotalAmount:   order.TotalAmount,
		CreatedAt:     order.CreatedAt,
		DurationMS:    e.alertDuration.Milliseconds(),
	}
	if err := e.surface.ShowAlert(ctx, alert); err != nil {
		e.logg.Error(ctx, "notifications.alert_failed", err)
		return
	}
	e.metrics.IncAlert("visual")
}

func (e *Engine) chime(ctx context.Context) {
	err := e.surface.PlayChime(ctx)
	if err == nil {
		e.metrics.IncAlert("chime")
		return
	}
	if !errors.Is(err, ErrPlaybackBlocked) {
		e.logg.Error(ctx, "notifications.chime_failed", err)
		return
	}

	e.metrics.IncPlaybackBlocked()
	e.mu.Lock()
	already := e.blocked
	e.blocked = true
	e.mu.Unlock()
	if already {
		return
	}
	e.logg.Warn(ctx, "notifications.playback_blocked")
	if err := e.surface.SetSoundBlocked(ctx, true); err != nil {
		e.logg.Error(ctx, "notifications.sound_blocked_signal_failed", err)
	}
}

func (e *Engine) schedulePrint(order models.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.prints.Add(1)
	e.timers[order.ID] = time.AfterFunc(e.printDelay, func() {
		defer e.prints.Done()
		e.print(order)
	})
}

// print dispatches the receipt and, when it went out, moves the order to preparing
// unless it already left the pending statuses.
func (e *Engine) print(order models.Order) {
	e.mu.Lock()
	delete(e.timers, order.ID)
	if e.stopped {
		e.mu.Unlock()
		return
	}
	ctx := e.logg.WithOrderID(e.ctx, order.ID.String())
	e.mu.Unlock()

	if _, err := e.printer.Print(ctx, order, e.settings.Display); err != nil {
		e.logg.Error(ctx, "notifications.auto_print_failed", err)
		return
	}

	e.mu.Lock()
	_, stillPending := e.pending[order.ID]
	e.mu.Unlock()
	if !stillPending {
		return
	}
	if err := e.orders.UpdateOrderStatus(ctx, order.TenantID, order.ID, enums.OrderStatusPreparing); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "notifications.auto_preparing_failed")
	}
}

// handleError keeps permission failures off the operator surface; the store already
// emitted them to the permission listeners.
func (e *Engine) handleError(ctx context.Context, err error) {
	if perr, ok := pkgerrors.AsPermission(err); ok {
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
			"path":      perr.Path,
			"operation": perr.Operation,
		}), "notifications.subscription_permission_denied")
		return
	}
	e.logg.Error(ctx, "notifications.subscription_failed", err)
	if rerr := e.surface.ReportError(ctx, "Não foi possível acompanhar novos pedidos. Recarregue a página."); rerr != nil {
		e.logg.Error(ctx, "notifications.report_error_failed", rerr)
	}
}
