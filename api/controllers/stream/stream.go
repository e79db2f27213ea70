package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

const (
	sessionEvent     = "session"
	closeTimeout     = 5 * time.Second
	defaultHeartbeat = 25 * time.Second
)

// SessionHub is the subset of notifications.Hub the stream endpoints use.
type SessionHub interface {
	Open(ctx context.Context, tenantID uuid.UUID, operatorID string) (*notifications.Session, error)
	Get(tenantID uuid.UUID, sessionID string) (*notifications.Session, error)
	Close(ctx context.Context, sessionID string) error
}

type sessionPayload struct {
	SessionID       string `json:"sessionId"`
	PlaybackBlocked bool   `json:"playbackBlocked"`
}

// Events opens an operator session and streams its events as server-sent events until
// the client disconnects. The first event carries the session id used by Ack and
// Interaction.
func Events(hub SessionHub, heartbeat time.Duration, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification hub unavailable"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		tenantID, err := middleware.TenantUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := hub.Open(r.Context(), tenantID, middleware.OperatorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, session.ID())
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
			defer cancel()
			if err := hub.Close(closeCtx, session.ID()); err != nil && logg != nil {
				logg.Error(ctx, "stream.close_failed", err)
			}
		}()

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, sessionEvent, sessionPayload{SessionID: session.ID(), PlaybackBlocked: session.PlaybackBlocked()}); err != nil {
			return
		}
		flusher.Flush()
		if logg != nil {
			logg.Info(ctx, "stream.opened")
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-session.Done():
				return
			case ev := <-session.Events():
				if err := writeEvent(w, ev.Name, ev.Data); err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "stream.write_failed")
					}
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

type ackRequest struct {
	ChimeID string `json:"chimeId" validate:"required"`
	Played  *bool  `json:"played" validate:"required"`
}

// Ack reports whether the browser managed to play a chime.
func Ack(hub SessionHub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := resolveSession(hub, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ackRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := session.Ack(payload.ChimeID, *payload.Played); err != nil {
			if errors.Is(err, notifications.ErrUnknownChime) {
				err = pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "chime not pending")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"acknowledged": true})
	}
}

// Interaction forwards a user gesture; while sound is blocked it retries the chime.
func Interaction(hub SessionHub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := resolveSession(hub, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := session.Interact(r.Context()); err != nil {
			if errors.Is(err, notifications.ErrSessionClosed) {
				err = pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "session closed")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"playbackBlocked": session.PlaybackBlocked()})
	}
}

func resolveSession(hub SessionHub, r *http.Request) (*notifications.Session, error) {
	if hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notification hub unavailable")
	}
	tenantID, err := middleware.TenantUUID(r.Context())
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionId"))
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sessionId is required")
	}
	return hub.Get(tenantID, sessionID)
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
