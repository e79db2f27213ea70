package checkout

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartcontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/cart"
	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/orderdesk-backend/internal/checkout"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type addressPayload struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Complement   string `json:"complement"`
}

// submitRequest leaves the form rules to the orchestrator so the customer sees its
// messages in the order it checks them.
type submitRequest struct {
	CustomerID    *uuid.UUID       `json:"customerId"`
	CustomerName  string           `json:"customerName"`
	CustomerPhone string           `json:"customerPhone"`
	DeliveryType  string           `json:"deliveryType"`
	Address       addressPayload   `json:"address"`
	PaymentMethod string           `json:"paymentMethod"`
	ChangeFor     *decimal.Decimal `json:"changeFor"`
}

func (p submitRequest) toInput() checkoutsvc.Input {
	return checkoutsvc.Input{
		CustomerID:    p.CustomerID,
		CustomerName:  validators.SanitizeString(p.CustomerName, 120),
		CustomerPhone: validators.SanitizeString(p.CustomerPhone, 32),
		DeliveryType:  enums.DeliveryType(strings.ToLower(strings.TrimSpace(p.DeliveryType))),
		Address: models.OrderAddress{
			Street:       validators.SanitizeString(p.Address.Street, 160),
			Number:       validators.SanitizeString(p.Address.Number, 20),
			Neighborhood: validators.SanitizeString(p.Address.Neighborhood, 120),
			Complement:   validators.SanitizeString(p.Address.Complement, 160),
		},
		PaymentMethod: validators.SanitizeString(p.PaymentMethod, 60),
		ChangeFor:     p.ChangeFor,
	}
}

// Submit turns the session cart into an order and returns the vendor WhatsApp hand-off.
func Submit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		key, err := cartcontrollers.CartKey(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), key, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
