package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	"github.com/angelmondragon/orderdesk-backend/api/validators"
	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

type storeInfo struct {
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Address        string   `json:"address"`
	Open           bool     `json:"open"`
	ClosedMessage  string   `json:"closedMessage,omitempty"`
	PaymentMethods []string `json:"paymentMethods"`
}

type menuResponse struct {
	Store storeInfo     `json:"store"`
	Menu  *catalog.Menu `json:"menu"`
}

// PublicMenu returns the storefront: active products by category, delivery zones and
// whether the store takes orders right now.
func PublicMenu(reader catalog.Reader, settings tenants.Service, defaultClosedMessage string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil || settings == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu dependencies unavailable"))
			return
		}

		tenantID, err := validators.URLParamUUID(r, "tenantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenant, err := settings.Settings(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		menu, err := reader.Menu(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info := storeInfo{
			Name:           tenant.Display.Name,
			Phone:          tenant.Display.Phone,
			Address:        tenant.Display.Address,
			Open:           tenant.IsOpen(time.Now()),
			PaymentMethods: tenant.PaymentMethods,
		}
		if !info.Open {
			info.ClosedMessage = tenant.ClosedMessage
			if info.ClosedMessage == "" {
				info.ClosedMessage = defaultClosedMessage
			}
		}
		responses.WriteSuccess(w, menuResponse{Store: info, Menu: menu})
	}
}
