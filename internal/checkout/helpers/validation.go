package helpers

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

// ValidateCustomer requires a name and a phone, in that order.
func ValidateCustomer(name, phone string) error {
	if strings.TrimSpace(name) == "" {
		return fieldError("customerName", "Informe seu nome.")
	}
	if strings.TrimSpace(phone) == "" {
		return fieldError("customerPhone", "Informe seu telefone.")
	}
	return nil
}

// ValidatePayment returns the tenant's canonical spelling of method.
func ValidatePayment(settings *tenants.Settings, method string) (string, error) {
	if settings == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tenant settings are required")
	}
	canonical, ok := settings.AcceptsPayment(method)
	if !ok {
		return "", fieldError("paymentMethod", "Selecione uma forma de pagamento válida.").
			WithDetails(map[string]any{"field": "paymentMethod", "accepted": settings.PaymentMethods})
	}
	return canonical, nil
}

// ValidateAddress trims the address of a delivery order. Pickup orders carry no address.
func ValidateAddress(deliveryType enums.DeliveryType, addr models.OrderAddress) (*models.OrderAddress, error) {
	if !deliveryType.IsValid() {
		return nil, fieldError("deliveryType", "Escolha entrega ou retirada.")
	}
	if deliveryType == enums.DeliveryTypePickup {
		return nil, nil
	}
	out := models.OrderAddress{
		Street:       strings.TrimSpace(addr.Street),
		Number:       strings.TrimSpace(addr.Number),
		Neighborhood: strings.TrimSpace(addr.Neighborhood),
		Complement:   strings.TrimSpace(addr.Complement),
	}
	switch {
	case out.Street == "":
		return nil, fieldError("address.street", "Informe a rua para entrega.")
	case out.Number == "":
		return nil, fieldError("address.number", "Informe o número para entrega.")
	case out.Neighborhood == "":
		return nil, fieldError("address.neighborhood", "Informe o bairro para entrega.")
	}
	return &out, nil
}

// DeliveryFee looks the neighborhood up among the active zones. No match, and pickup,
// cost nothing.
func DeliveryFee(deliveryType enums.DeliveryType, zones []models.DeliveryZone, neighborhood string) decimal.Decimal {
	if deliveryType != enums.DeliveryTypeDelivery {
		return decimal.Zero
	}
	wanted := strings.TrimSpace(neighborhood)
	for _, zone := range zones {
		if !zone.IsActive {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(zone.Neighborhood), wanted) {
			return zone.DeliveryFee
		}
	}
	return decimal.Zero
}

func fieldError(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
