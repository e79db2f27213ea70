package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionErrorUnwrapsAndFormats(t *testing.T) {
	cause := stdErrors.New("insufficient_privilege")
	perr := NewPermissionError("tenants/t1/orders", "list", map[string]any{"status": "new"}, cause)

	wrapped := fmt.Errorf("subscribe: %w", perr)
	got, ok := AsPermission(wrapped)
	require.True(t, ok)
	assert.Equal(t, "tenants/t1/orders", got.Path)
	assert.Equal(t, "list", got.Operation)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, perr.Error(), "list on tenants/t1/orders")

	_, ok = AsPermission(stdErrors.New("other"))
	assert.False(t, ok)
}

func TestEmitterDeliversToAllListeners(t *testing.T) {
	emitter := NewEmitter()
	var seen []string
	emitter.On(func(_ context.Context, perr *PermissionError) {
		seen = append(seen, "first:"+perr.Operation)
	})
	emitter.On(func(_ context.Context, perr *PermissionError) {
		seen = append(seen, "second:"+perr.Operation)
	})

	emitter.Emit(context.Background(), NewPermissionError("tenants/t1/orders/o1", "update", nil, nil))
	emitter.Emit(context.Background(), nil)

	assert.Equal(t, []string{"first:update", "second:update"}, seen)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	emitter.On(func(context.Context, *PermissionError) {})
	emitter.Emit(context.Background(), NewPermissionError("p", "get", nil, nil))
}
