package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	cartsvc "github.com/angelmondragon/orderdesk-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

const (
	maxNotesLength   = 280
	maxSessionLength = 128
)

type addItemRequest struct {
	ProductID uuid.UUID           `json:"productId" validate:"required"`
	Quantity  int                 `json:"quantity" validate:"omitempty,min=1,max=99"`
	Notes     string              `json:"notes"`
	Variants  map[string][]string `json:"variants"`
}

func (p addItemRequest) toInput() cartsvc.AddItemInput {
	return cartsvc.AddItemInput{
		ProductID: p.ProductID,
		Quantity:  p.Quantity,
		Notes:     validators.SanitizeMultiline(p.Notes, maxNotesLength),
		Variants:  p.Variants,
	}
}

type updateItemRequest struct {
	Quantity *int    `json:"quantity" validate:"omitempty,min=1,max=99"`
	Notes    *string `json:"notes"`
}

func (p updateItemRequest) toInput() (cartsvc.UpdateItemInput, error) {
	if p.Quantity == nil && p.Notes == nil {
		return cartsvc.UpdateItemInput{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity or notes required")
	}
	input := cartsvc.UpdateItemInput{Quantity: p.Quantity}
	if p.Notes != nil {
		notes := validators.SanitizeMultiline(*p.Notes, maxNotesLength)
		input.Notes = &notes
	}
	return input, nil
}

// cartKey resolves the tenant path param and the cart session header.
func cartKey(r *http.Request) (cartsvc.Key, error) {
	tenantID, err := validators.URLParamUUID(r, "tenantId")
	if err != nil {
		return cartsvc.Key{}, err
	}
	session := strings.TrimSpace(r.Header.Get(middleware.CartSessionHeader))
	if session == "" {
		return cartsvc.Key{}, pkgerrors.New(pkgerrors.CodeValidation, middleware.CartSessionHeader+" header required")
	}
	if len(session) > maxSessionLength {
		return cartsvc.Key{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session too long")
	}
	return cartsvc.Key{TenantID: tenantID, SessionID: session}, nil
}

// CartKey is shared with checkout, which submits the same session cart.
func CartKey(r *http.Request) (cartsvc.Key, error) {
	return cartKey(r)
}
