package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
)

// PermissionError describes a store read or write rejected by access rules.
type PermissionError struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	Payload   any    `json:"payload,omitempty"`
	cause     error
}

// NewPermissionError builds a PermissionError for the attempted path/operation.
func NewPermissionError(path, operation string, payload any, cause error) *PermissionError {
	return &PermissionError{Path: path, Operation: operation, Payload: payload, cause: cause}
}

func (e *PermissionError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("permission denied: %s on %s", e.Operation, e.Path)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// AsPermission extracts a PermissionError from the chain.
func AsPermission(err error) (*PermissionError, bool) {
	if err == nil {
		return nil, false
	}
	var perm *PermissionError
	if stdErrors.As(err, &perm) {
		return perm, true
	}
	return nil, false
}

// PermissionListener receives emitted permission failures.
type PermissionListener func(ctx context.Context, perr *PermissionError)

// Emitter fans permission failures out to developer-facing listeners.
type Emitter struct {
	mu        sync.RWMutex
	listeners []PermissionListener
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// On registers a listener. Listeners run synchronously in registration order.
func (e *Emitter) On(listener PermissionListener) {
	if e == nil || listener == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// Emit delivers perr to every registered listener.
func (e *Emitter) Emit(ctx context.Context, perr *PermissionError) {
	if e == nil || perr == nil {
		return
	}
	e.mu.RLock()
	listeners := make([]PermissionListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, perr)
	}
}
