package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

type contextKey int

const (
	ctxOperatorID contextKey = iota
	ctxRole
	ctxTenantID
)

// CartSessionHeader carries the anonymous browsing session that owns a cart.
const CartSessionHeader = "X-Cart-Session"

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func OperatorIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxOperatorID) }

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, ctxRole) }

func TenantIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxTenantID) }

func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return withString(ctx, ctxOperatorID, operatorID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, ctxRole, role)
}

// WithTenantID scopes every downstream handler to the tenant.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withString(ctx, ctxTenantID, tenantID)
}

// TenantUUID parses the authenticated tenant from the context.
func TenantUUID(ctx context.Context) (uuid.UUID, error) {
	raw := TenantIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	return id, nil
}
