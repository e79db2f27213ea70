package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

type settingsReader interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (*tenants.Settings, error)
}

// HubDeps wires the operator session registry.
type HubDeps struct {
	Orders     orderSource
	Tenants    settingsReader
	PrintMode  enums.PrintMode
	PDFSurface receipts.Surface
	Config     config.NotificationsConfig
	Metrics    *metrics.DeskMetrics
	Logger     *logger.Logger
}

// Hub owns the live operator sessions of this process. Each session gets its own
// Engine; sessions of the same tenant alert independently.
type Hub struct {
	orders     orderSource
	tenants    settingsReader
	printMode  enums.PrintMode
	pdfSurface receipts.Surface
	cfg        config.NotificationsConfig
	metrics    *metrics.DeskMetrics
	logg       *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(deps HubDeps) (*Hub, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if deps.Tenants == nil {
		return nil, fmt.Errorf("tenant settings reader required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	mode := deps.PrintMode
	if mode == "" {
		mode = enums.PrintModeBrowser
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid print mode %q", mode)
	}
	if mode == enums.PrintModePDF && deps.PDFSurface == nil {
		return nil, fmt.Errorf("pdf surface required in pdf print mode")
	}
	return &Hub{
		orders:     deps.Orders,
		tenants:    deps.Tenants,
		printMode:  mode,
		pdfSurface: deps.PDFSurface,
		cfg:        deps.Config,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		sessions:   make(map[string]*Session),
	}, nil
}

// Open starts a session for an operator connection. The engine runs until ctx ends or
// Close is called.
func (h *Hub) Open(ctx context.Context, tenantID uuid.UUID, operatorID string) (*Session, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	settings, err := h.tenants.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	session := newSession(tenantID, operatorID, h.cfg.PlaybackAckTimeout)
	var printer receiptPrinter
	if settings.Notifications.AutoPrintEnabled {
		var surface receipts.Surface = session
		if h.printMode == enums.PrintModePDF {
			surface = h.pdfSurface
		}
		p, err := receipts.NewPrinter(h.printMode, surface, h.metrics)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build receipt printer")
		}
		printer = p
	}

	engine, err := NewEngine(EngineDeps{
		Orders:        h.orders,
		Surface:       session,
		Printer:       printer,
		Settings:      settings,
		AlertDuration: h.cfg.AlertDuration,
		PrintDelay:    h.cfg.PrintDelay,
		Metrics:       h.metrics,
		Logger:        h.logg,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build notification engine")
	}
	session.engine = engine

	sessionCtx := h.logg.WithSessionID(ctx, session.id)
	if operatorID != "" {
		sessionCtx = h.logg.WithOperatorID(sessionCtx, operatorID)
	}
	if err := engine.Start(sessionCtx); err != nil {
		session.close()
		return nil, err
	}

	h.mu.Lock()
	h.sessions[session.id] = session
	h.mu.Unlock()
	return session, nil
}

// Get returns a live session of the tenant.
func (h *Hub) Get(tenantID uuid.UUID, sessionID string) (*Session, error) {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok || session.tenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	return session, nil
}

// Close stops the session's engine and ends its stream.
func (h *Hub) Close(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return h.stop(ctx, session)
}

// Shutdown closes every session.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for id, session := range h.sessions {
		sessions = append(sessions, session)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	var err error
	for _, session := range sessions {
		err = multierr.Append(err, h.stop(ctx, session))
	}
	return err
}

// Len is the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) stop(ctx context.Context, session *Session) error {
	err := session.engine.Stop(ctx)
	session.close()
	if err != nil {
		return fmt.Errorf("session %s: %w", session.id, err)
	}
	return nil
}
